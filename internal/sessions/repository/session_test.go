package repository

import (
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

func TestLiveSessionFilter(t *testing.T) {
	filter := liveSessionFilter("session-1")

	if got := filter["_id"]; got != "session-1" {
		t.Errorf("_id filter = %v, want session-1", got)
	}
	// Cancel and complete marks must only match a live session, so a
	// session already in a terminal state can never gain the other mark.
	if got := filter["is_cancelled"]; got != false {
		t.Errorf("is_cancelled filter = %v, want false", got)
	}
	if got := filter["is_completed"]; got != false {
		t.Errorf("is_completed filter = %v, want false", got)
	}
}

func TestConflictFilter(t *testing.T) {
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	start := date.Add(10 * time.Hour)
	end := date.Add(11 * time.Hour)

	tests := []struct {
		name      string
		excludeID string
	}{
		{name: "create path has no exclusion", excludeID: ""},
		{name: "update path excludes own id", excludeID: "7b8d4c1e-9f2a-4e3b-8c5d-1a6f0e9b2d37"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			filter := conflictFilter("trainer-1", "zone-1", date, start, end, tc.excludeID)

			if got := filter["date"]; got != date {
				t.Errorf("date filter = %v, want %v", got, date)
			}
			if got := filter["is_cancelled"]; got != false {
				t.Errorf("is_cancelled filter = %v, want false", got)
			}

			// Half-open overlap: existing.start < end AND existing.end > start,
			// so a session ending exactly at start does not match.
			if got := filter["start_time"]; !reflect.DeepEqual(got, bson.M{"$lt": end}) {
				t.Errorf("start_time bound = %v, want $lt %v", got, end)
			}
			if got := filter["end_time"]; !reflect.DeepEqual(got, bson.M{"$gt": start}) {
				t.Errorf("end_time bound = %v, want $gt %v", got, start)
			}

			axes, ok := filter["$or"].([]bson.M)
			if !ok || len(axes) != 2 {
				t.Fatalf("$or axes = %v, want trainer and zone clauses", filter["$or"])
			}
			if axes[0]["trainer_id"] != "trainer-1" || axes[1]["zone_id"] != "zone-1" {
				t.Errorf("axes = %v, want trainer_id and zone_id clauses", axes)
			}

			excl, hasExcl := filter["_id"]
			if tc.excludeID == "" {
				if hasExcl {
					t.Errorf("unexpected _id exclusion %v", excl)
				}
				return
			}
			if !reflect.DeepEqual(excl, bson.M{"$ne": tc.excludeID}) {
				t.Errorf("_id exclusion = %v, want $ne %s", excl, tc.excludeID)
			}
		})
	}
}
