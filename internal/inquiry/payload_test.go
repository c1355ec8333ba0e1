package inquiry

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testFields_PreserveSubmissionOrder(t *rapid.T) {
	keys := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9 _]{0,12}`), 0, 12, rapid.ID[string]).Draw(t, "keys")

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k) + ":" + strconv.Quote("v"+strconv.Itoa(i)))
	}
	b.WriteByte('}')

	var f Fields
	if err := json.Unmarshal([]byte(b.String()), &f); err != nil {
		t.Fatalf("unmarshal %s: %v", b.String(), err)
	}
	if len(f) != len(keys) {
		t.Fatalf("got %d fields, want %d", len(f), len(keys))
	}
	for i, k := range keys {
		if f[i].Key != k || f[i].Value != "v"+strconv.Itoa(i) {
			t.Fatalf("field %d = %+v, want key %q", i, f[i], k)
		}
	}

	again, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Fields
	if err := json.Unmarshal(again, &back); err != nil {
		t.Fatalf("unmarshal marshalled: %v", err)
	}
	if len(back) != len(f) {
		t.Fatalf("marshal changed field count: %d vs %d", len(back), len(f))
	}
}

func TestFields_PreserveSubmissionOrder(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testFields_PreserveSubmissionOrder)
}

func TestFields_ScalarsDuplicatesAndNull(t *testing.T) {
	t.Parallel()
	var f Fields
	require.NoError(t, json.Unmarshal([]byte(`{"b":"1","a":2,"c":true,"d":null,"b":"3"}`), &f))
	assert.Equal(t, Fields{{"b", "3"}, {"a", "2"}, {"c", "true"}, {"d", ""}}, f)

	v, ok := f.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	require.NoError(t, json.Unmarshal([]byte(`null`), &f))
	assert.Nil(t, f)

	require.Error(t, json.Unmarshal([]byte(`{"nested":{"x":"y"}}`), &f))
	require.Error(t, json.Unmarshal([]byte(`["a"]`), &f))
}

func TestDate_Layouts(t *testing.T) {
	t.Parallel()
	cases := map[string]time.Time{
		`"2025-01-01"`:                time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		`"2025-03-04T10:20:30Z"`:      time.Date(2025, 3, 4, 10, 20, 30, 0, time.UTC),
		`"2025-03-04T10:20:30.5"`:     time.Date(2025, 3, 4, 10, 20, 30, 500000000, time.UTC),
		`"2025-03-04T12:20:30+02:00"`: time.Date(2025, 3, 4, 10, 20, 30, 0, time.UTC),
	}
	for raw, want := range cases {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(raw), &d), raw)
		assert.True(t, d.IsSet(), raw)
		assert.True(t, want.Equal(d.Time), "%s parsed as %v", raw, d.Time)
	}

	for _, raw := range []string{`null`, `""`, `"  "`} {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(raw), &d), raw)
		assert.False(t, d.IsSet(), raw)
	}

	var d Date
	require.Error(t, json.Unmarshal([]byte(`"next tuesday"`), &d))
	require.Error(t, json.Unmarshal([]byte(`20250101`), &d))
}

func testTravelPlanning_TotalTravelers(t *rapid.T) {
	adults := rapid.IntRange(0, 1000).Draw(t, "adults")
	children := rapid.IntRange(0, 1000).Draw(t, "children")
	tp := TravelPlanning{Adults: &adults, Children: children}
	if got := tp.TotalTravelers(); got != adults+children {
		t.Fatalf("TotalTravelers = %d, want %d", got, adults+children)
	}

	p := validComprehensive()
	p.TravelPlanning = &tp
	if verrs := p.Validate(); verrs != nil {
		t.Fatalf("valid payload rejected: %v", verrs)
	}
	want := "Total Travelers:</strong> " + strconv.Itoa(adults+children) + " ("
	if html := p.Render(fixedNow).HTMLBody; !strings.Contains(html, want) {
		t.Fatalf("rendered body missing %q", want)
	}
}

func TestTravelPlanning_TotalTravelers(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testTravelPlanning_TotalTravelers)
}

func TestTravelPlanning_Timeframe(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "June 2025", TravelPlanning{FlexibleDates: true, TravelDates: "June 2025"}.TravelTimeframe())
	assert.Equal(t, "Flexible dates", TravelPlanning{FlexibleDates: true}.TravelTimeframe())
	assert.Equal(t, "August", TravelPlanning{TravelMonth: "August"}.TravelTimeframe())
	assert.Equal(t, "Specific dates", TravelPlanning{}.TravelTimeframe())
}
