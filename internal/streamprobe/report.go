package streamprobe

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteReport prints a comparison in the layout used by the compare command.
func WriteReport(w io.Writer, cmp *Comparison) error {
	if len(cmp.Valid) == 0 {
		_, err := fmt.Fprintln(w, "No stream could be probed")
		return err
	}

	if cmp.Identical {
		first := cmp.Valid[0].Info
		fmt.Fprintln(w, "WARNING: all streams appear IDENTICAL")
		fmt.Fprintf(w, "  Resolution: %s\n", first.Resolution)
		fmt.Fprintf(w, "  Bitrate:    %d kbps\n", first.Bitrate/1000)
		fmt.Fprintf(w, "  Codec:      %s\n", first.Codec)
		fmt.Fprintf(w, "  File size:  %.1f MB\n", megabytes(first.FileSize))
		fmt.Fprintln(w, "These are likely duplicates listed under several stream ids, not quality variants.")
	} else {
		fmt.Fprintln(w, "Streams have DIFFERENT characteristics")
		for _, d := range cmp.Differences {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STREAM\tRESOLUTION\tBITRATE\tSIZE\tCODEC\tFPS\tAUDIO")
	for _, r := range cmp.Valid {
		i := r.Info
		audio := i.AudioCodec
		if i.AudioLayout != "" {
			audio += " " + i.AudioLayout
		}
		fmt.Fprintf(tw, "%s\t%s\t%d kbps\t%.1f MB\t%s\t%.2f\t%s\n",
			r.Label, i.Resolution, i.Bitrate/1000, megabytes(i.FileSize), i.Codec, i.FPS, audio)
	}
	for _, r := range cmp.Failed {
		fmt.Fprintf(tw, "%s\tfailed: %s\t\t\t\t\t\n", r.Label, r.Error)
	}
	return tw.Flush()
}
