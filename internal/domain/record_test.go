package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRecord_RoundTripPreservesUnknownFields(t *testing.T) {
	t.Parallel()

	in := `{"id":"r1","name":"Jun Bistro","cuisine":"川菜","google_rating":4.5,
		"mention_count":3,"total_engagement":120,"address":{"street":"1 Main St"}}`

	var r Record
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.ID != "r1" || r.MentionCount != 3 || r.TotalEngagement != 120 {
		t.Fatalf("typed fields not decoded: %+v", r)
	}
	if len(r.Extra) != 3 {
		t.Fatalf("expected 3 extra keys, got %d: %v", len(r.Extra), r.Extra)
	}

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got, want map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if err := json.Unmarshal([]byte(in), &want); err != nil {
		t.Fatalf("unmarshal input: %v", err)
	}
	for k, v := range want {
		gb, _ := json.Marshal(got[k])
		wb, _ := json.Marshal(v)
		if string(gb) != string(wb) {
			t.Errorf("key %s = %s, want %s", k, gb, wb)
		}
	}
}

func TestRecord_NumericStringsAndIDs(t *testing.T) {
	t.Parallel()

	in := `{"id":42,"name":"A","mention_count":"7","total_engagement":"1.5k",
		"post_details":[{"post_id":9,"engagement":"30"}]}`

	var r Record
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.ID != "42" {
		t.Errorf("ID = %q, want %q", r.ID, "42")
	}
	if r.MentionCount != 7 {
		t.Errorf("MentionCount = %d, want 7", r.MentionCount)
	}
	if r.TotalEngagement != 1500 {
		t.Errorf("TotalEngagement = %v, want 1500", r.TotalEngagement)
	}
	if r.PostDetails[0].PostID != "9" || r.PostDetails[0].Engagement != 30 {
		t.Errorf("post detail = %+v", r.PostDetails[0])
	}
}

func TestRecord_TimeseriesMigrationState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		migrate bool
		legacy  bool
	}{
		{name: "list", in: `{"id":"a","timeseries":[{"month":"2025-01","mentions":1,"engagement":2}]}`},
		{name: "empty list", in: `{"id":"a","timeseries":[]}`},
		{name: "missing", in: `{"id":"a"}`, migrate: true},
		{name: "scalar", in: `{"id":"a","timeseries":"up","trend_30d":5}`, migrate: true, legacy: true},
		{name: "null", in: `{"id":"a","timeseries":null}`, migrate: true, legacy: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var r Record
			if err := json.Unmarshal([]byte(tt.in), &r); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := r.NeedsTimeseriesMigration(); got != tt.migrate {
				t.Errorf("NeedsTimeseriesMigration() = %v, want %v", got, tt.migrate)
			}
			if got := r.LegacyTimeseries != nil; got != tt.legacy {
				t.Errorf("legacy = %v, want %v", got, tt.legacy)
			}
		})
	}
}

func TestRecord_MigrateTimeseries(t *testing.T) {
	t.Parallel()

	var r Record
	if err := json.Unmarshal([]byte(`{"id":"a","timeseries":"up","trend_30d":5,"city":"SJ"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	r.MigrateTimeseries()

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `"timeseries":[]`) {
		t.Errorf("expected empty timeseries list, got %s", s)
	}
	if strings.Contains(s, "trend_30d") {
		t.Errorf("trend_30d should be removed, got %s", s)
	}
	if !strings.Contains(s, `"city":"SJ"`) {
		t.Errorf("unrelated field lost, got %s", s)
	}
}

func TestRecord_LegacyTimeseriesWrittenBackUnchanged(t *testing.T) {
	t.Parallel()

	var r Record
	if err := json.Unmarshal([]byte(`{"id":"a","timeseries":{"trend":"up"}}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, _ := json.Marshal(r)
	if !strings.Contains(string(out), `"timeseries":{"trend":"up"}`) {
		t.Errorf("legacy value not preserved: %s", out)
	}
}

func TestRecord_AddToMonth(t *testing.T) {
	t.Parallel()

	r := Record{Timeseries: []TimeseriesPoint{{Month: "2025-03", Mentions: 1, Engagement: 10}}}
	r.AddToMonth("2025-03", 1, 5, 24)
	r.AddToMonth("2025-01", 1, 2, 24)

	if len(r.Timeseries) != 2 {
		t.Fatalf("expected 2 points, got %d", len(r.Timeseries))
	}
	if r.Timeseries[0].Month != "2025-01" {
		t.Errorf("points not sorted ascending: %+v", r.Timeseries)
	}
	if p := r.Timeseries[1]; p.Mentions != 2 || p.Engagement != 15 {
		t.Errorf("existing month not accumulated: %+v", p)
	}
}

func TestTrimTimeseries_KeepsNewest(t *testing.T) {
	t.Parallel()

	var points []TimeseriesPoint
	for _, m := range []string{"2024-03", "2024-01", "2024-02", "2024-04"} {
		points = append(points, TimeseriesPoint{Month: m})
	}
	got := TrimTimeseries(points, 2)
	if len(got) != 2 || got[0].Month != "2024-03" || got[1].Month != "2024-04" {
		t.Errorf("TrimTimeseries = %+v", got)
	}
}

func TestDish_Shapes(t *testing.T) {
	t.Parallel()

	in := `["麻婆豆腐",{"name":"水煮鱼","note":"spicy"},{"dish":"口水鸡"}]`
	var dishes []Dish
	if err := json.Unmarshal([]byte(in), &dishes); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	names := []string{"麻婆豆腐", "水煮鱼", "口水鸡"}
	for i, d := range dishes {
		if d.Name != names[i] {
			t.Errorf("dish %d name = %q, want %q", i, d.Name, names[i])
		}
	}

	out, _ := json.Marshal(dishes)
	if string(out) != `["麻婆豆腐",{"name":"水煮鱼","note":"spicy"},{"dish":"口水鸡"}]` {
		t.Errorf("dishes not written back in original shape: %s", out)
	}
}

func TestRecord_HasDishNormalizes(t *testing.T) {
	t.Parallel()

	r := Record{Recommendations: []Dish{{Name: "Mapo Tofu"}}}
	if !r.HasDish("mapo-tofu") {
		t.Error("expected normalized dish match")
	}
	if r.HasDish("Fish") {
		t.Error("unexpected dish match")
	}
}

func TestPostDetail_Weight(t *testing.T) {
	t.Parallel()

	p := PostDetail{Engagement: 100}
	if p.Weight() != 100 {
		t.Errorf("Weight() = %v, want raw engagement", p.Weight())
	}
	p.AdjustedEngagement = Float64(2.5)
	if p.Weight() != 2.5 {
		t.Errorf("Weight() = %v, want adjusted engagement", p.Weight())
	}
}

func TestParseCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"12", 12, false},
		{"1,234", 1234, false},
		{"1.2万", 12000, false},
		{"3k", 3000, false},
		{"", 0, false},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCount(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCount(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
