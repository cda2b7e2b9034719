// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package models

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestMediaItemKey(t *testing.T) {
	tests := []struct {
		name    string
		item    MediaItem
		wantKey string
		wantOK  bool
	}{
		{
			name:    "movie",
			item:    MediaItem{Type: MediaTypeMovie, Movie: &Movie{Title: "Heat", IDs: IDs{Trakt: 42}}},
			wantKey: "movie:42",
			wantOK:  true,
		},
		{
			name:    "episode with show context",
			item:    MediaItem{Type: MediaTypeEpisode, Episode: &Episode{Season: 2, Number: 5, IDs: IDs{Trakt: 901}}, Show: &Show{Title: "X"}},
			wantKey: "episode:901",
			wantOK:  true,
		},
		{
			name:    "season",
			item:    MediaItem{Type: MediaTypeSeason, Season: &Season{Number: 3, IDs: IDs{Trakt: 77}}},
			wantKey: "season:77",
			wantOK:  true,
		},
		{
			name:   "missing payload",
			item:   MediaItem{Type: MediaTypeMovie},
			wantOK: false,
		},
		{
			name:   "payload without trakt id",
			item:   MediaItem{Type: MediaTypeShow, Show: &Show{Title: "NoID"}},
			wantOK: false,
		},
		{
			name:   "no type and no payload",
			item:   MediaItem{},
			wantOK: false,
		},
		{
			name:    "type inferred from payload",
			item:    MediaItem{Movie: &Movie{IDs: IDs{Trakt: 7}}},
			wantKey: "movie:7",
			wantOK:  true,
		},
		{
			name:    "mismatched payload ignored",
			item:    MediaItem{Type: MediaTypeMovie, Show: &Show{IDs: IDs{Trakt: 9}}},
			wantKey: "",
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := tt.item.Key()
			if ok != tt.wantOK {
				t.Fatalf("Key() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && key != tt.wantKey {
				t.Errorf("Key() = %q, want %q", key, tt.wantKey)
			}
		})
	}
}

func TestEffectiveTypeInference(t *testing.T) {
	item := MediaItem{Episode: &Episode{Number: 1}}
	if got := item.EffectiveType(); got != MediaTypeEpisode {
		t.Errorf("EffectiveType() = %q, want %q", got, MediaTypeEpisode)
	}

	// Explicit tag wins over populated payloads.
	item = MediaItem{Type: MediaTypeShow, Show: &Show{}, Episode: &Episode{}}
	if got := item.EffectiveType(); got != MediaTypeShow {
		t.Errorf("EffectiveType() = %q, want %q", got, MediaTypeShow)
	}
}

func TestHistoryItemUnmarshal(t *testing.T) {
	payload := `{
		"id": 1982347,
		"watched_at": "2024-11-01T20:00:00.000Z",
		"action": "watch",
		"type": "episode",
		"episode": {"season": 1, "number": 3, "title": "Pilot Part 3", "ids": {"trakt": 501}},
		"show": {"title": "Lost", "year": 2004, "ids": {"trakt": 100}}
	}`

	var item HistoryItem
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if item.Type != MediaTypeEpisode {
		t.Errorf("Type = %q, want episode", item.Type)
	}
	if item.Episode == nil || item.Episode.Title != "Pilot Part 3" {
		t.Errorf("Episode payload not decoded: %+v", item.Episode)
	}
	if item.Show == nil || item.Show.Title != "Lost" {
		t.Errorf("Show context not decoded: %+v", item.Show)
	}

	key, ok := item.Key()
	if !ok || key != "episode:501" {
		t.Errorf("Key() = %q, %v, want episode:501", key, ok)
	}
}

func TestFlatItemFieldOrder(t *testing.T) {
	rating := 8
	flat := FlatItem{
		Type:      MediaTypeSeason,
		Title:     "X - Season 3",
		ShowTitle: "X",
		ShowYear:  2020,
		Season:    3,
		Rating:    &rating,
	}

	data, err := json.Marshal(flat)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got := string(data)
	want := `{"type":"season","title":"X - Season 3","show_title":"X","show_year":2020,"season":3,"rating":8,"plays":0}`
	if got != want {
		t.Errorf("marshaled order mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestFlatItemPlaysAlwaysPresent(t *testing.T) {
	data, err := json.Marshal(FlatItem{Type: MediaTypeMovie, Title: "Heat", Year: 1995})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"type":"movie","title":"Heat","year":1995,"plays":0}` {
		t.Errorf("unexpected output: %s", data)
	}
}
