package lexical

import (
	"strings"
	"testing"
)

func testSet() CategorySet {
	return NewCategorySet(
		CategoryTriggers{Category: "joy", Triggers: []string{"happy", "excited", "joyful"}},
		CategoryTriggers{Category: "sadness", Triggers: []string{"sad", "grief"}},
		CategoryTriggers{Category: "anger", Triggers: []string{"angry", "rage"}},
	)
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantMatches map[string][]string
	}{
		{
			name:        "no matches",
			text:        "the weather is fine",
			wantMatches: map[string][]string{},
		},
		{
			name:        "single category",
			text:        "I feel happy today",
			wantMatches: map[string][]string{"joy": {"happy"}},
		},
		{
			name:        "case insensitive",
			text:        "SO HAPPY and EXCITED",
			wantMatches: map[string][]string{"joy": {"happy", "excited"}},
		},
		{
			name: "multiple categories",
			text: "happy but also full of grief and rage",
			wantMatches: map[string][]string{
				"joy":     {"happy"},
				"sadness": {"grief"},
				"anger":   {"rage"},
			},
		},
	}

	c := NewClassifier()
	set := testSet()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Match(tt.text, set)

			if len(got) != len(tt.wantMatches) {
				t.Errorf("category count = %d, want %d", len(got), len(tt.wantMatches))
			}
			for category, triggers := range got {
				want, ok := tt.wantMatches[category]
				if !ok {
					t.Errorf("unexpected category %q", category)
					continue
				}
				if len(triggers) != len(want) {
					t.Errorf("%s triggers = %v, want %v", category, triggers, want)
					continue
				}
				for i := range triggers {
					if triggers[i] != want[i] {
						t.Errorf("%s triggers = %v, want %v", category, triggers, want)
						break
					}
				}
			}
		})
	}
}

func TestMatchOutputIsSubsetOfConfiguration(t *testing.T) {
	c := NewClassifier()
	set := testSet()
	got := c.Match("happy sad angry rage grief excited joyful whatever", set)

	for category, triggers := range got {
		if _, ok := set.Triggers[category]; !ok {
			t.Errorf("category %q not in configured set", category)
		}
		for _, trigger := range triggers {
			if !strings.Contains("happy sad angry rage grief excited joyful whatever", trigger) {
				t.Errorf("trigger %q is not a substring of the input", trigger)
			}
		}
	}
}

func TestCounts(t *testing.T) {
	c := NewClassifier()
	counts := c.Counts("happy and excited yet angry", testSet())

	if counts["joy"] != 2 {
		t.Errorf("joy count = %d, want 2", counts["joy"])
	}
	if counts["anger"] != 1 {
		t.Errorf("anger count = %d, want 1", counts["anger"])
	}
	if _, ok := counts["sadness"]; ok {
		t.Error("sadness should not be present with zero hits")
	}
}

func TestContainsAny(t *testing.T) {
	if !ContainsAny("Deep Integration work ahead", []string{"deep integration"}) {
		t.Error("expected case-insensitive phrase hit")
	}
	if ContainsAny("nothing here", []string{"absent"}) {
		t.Error("expected no hit")
	}
}
