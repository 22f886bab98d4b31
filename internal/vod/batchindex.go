package vod

import (
	"database/sql"
	"fmt"
	"strings"
)

// batchIndex locates the pending catalog row a provider record belongs to
// within one batch. A row is registered under every key any of its records
// carried, so twins match whether or not each of them has a TMDB id.
type batchIndex struct {
	byTmdb map[string]int
	byName map[string]int
	byRow  map[int64]int
	tmdbOf map[int]string
}

func newBatchIndex() *batchIndex {
	return &batchIndex{
		byTmdb: make(map[string]int),
		byName: make(map[string]int),
		byRow:  make(map[int64]int),
		tmdbOf: make(map[int]string),
	}
}

// nameYearKey is empty for placeholder names, which never match by name.
func nameYearKey(name string, year sql.NullInt64, placeholder bool) string {
	if placeholder {
		return ""
	}
	return fmt.Sprintf("%s|%d", strings.ToLower(name), year.Int64)
}

// match looks up by TMDB id, then by (name, year). A name match is refused
// when both sides carry different TMDB ids.
func (b *batchIndex) match(tmdb sql.NullString, nameKey string) (int, bool) {
	if tmdb.Valid {
		if pos, ok := b.byTmdb[tmdb.String]; ok {
			return pos, true
		}
	}
	if nameKey == "" {
		return 0, false
	}
	pos, ok := b.byName[nameKey]
	if !ok {
		return 0, false
	}
	if other, has := b.tmdbOf[pos]; has && tmdb.Valid && other != tmdb.String {
		return 0, false
	}
	return pos, true
}

// matchRow finds a pending entry already resolved to catalog row id.
func (b *batchIndex) matchRow(id int64) (int, bool) {
	if id == 0 {
		return 0, false
	}
	pos, ok := b.byRow[id]
	return pos, ok
}

func (b *batchIndex) add(pos int, tmdb sql.NullString, nameKey string, rowID int64) {
	if tmdb.Valid {
		if _, ok := b.byTmdb[tmdb.String]; !ok {
			b.byTmdb[tmdb.String] = pos
		}
		if _, ok := b.tmdbOf[pos]; !ok {
			b.tmdbOf[pos] = tmdb.String
		}
	}
	if nameKey != "" {
		if _, ok := b.byName[nameKey]; !ok {
			b.byName[nameKey] = pos
		}
	}
	if rowID != 0 {
		b.byRow[rowID] = pos
	}
}
