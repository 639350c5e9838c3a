package inventory

import (
	"reflect"
	"testing"
)

func sampleInventory() *Inventory {
	return New([]Package{
		{Name: "com.android.chrome", Category: "google", Tier: TierAdvanced, Status: Installed},
		{Name: "com.google.android.youtube", Category: "google", Tier: TierSafe, Status: Installed},
		{Name: "com.samsung.android.bixby", Category: "oem", Tier: TierSafe, Status: Uninstalled},
		{Name: "com.android.systemui", Category: "aosp", Tier: TierUnsafe, Status: Installed},
		{Name: "com.example.Widget", Category: DefaultCategory, Tier: TierUnknown, Status: Installed},
		{Name: "com.android.bluetooth", Category: "aosp", Tier: TierSafe, Status: Installed},
	})
}

func rowNames(rows []Row) []string {
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return names
}

func TestRecompute_DefaultCriteria(t *testing.T) {
	rows := Recompute(sampleInventory(), DefaultCriteria(), NewSelection())

	want := []string{"com.android.bluetooth", "com.google.android.youtube"}
	if got := rowNames(rows); !reflect.DeepEqual(got, want) {
		t.Errorf("visible = %v, want %v", got, want)
	}
}

func TestRecompute_Predicates(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{
			name:     "everything",
			criteria: Criteria{Status: All, Category: All, Tier: All},
			want: []string{
				"com.android.bluetooth",
				"com.android.chrome",
				"com.android.systemui",
				"com.example.Widget",
				"com.google.android.youtube",
				"com.samsung.android.bixby",
			},
		},
		{
			name:     "uninstalled only",
			criteria: Criteria{Status: string(Uninstalled), Category: All, Tier: All},
			want:     []string{"com.samsung.android.bixby"},
		},
		{
			name:     "category",
			criteria: Criteria{Status: All, Category: "aosp", Tier: All},
			want:     []string{"com.android.bluetooth", "com.android.systemui"},
		},
		{
			name:     "unlisted category",
			criteria: Criteria{Status: All, Category: DefaultCategory, Tier: All},
			want:     []string{"com.example.Widget"},
		},
		{
			name:     "unknown tier is matched literally",
			criteria: Criteria{Status: All, Category: All, Tier: TierUnknown},
			want:     []string{"com.example.Widget"},
		},
		{
			name:     "search substring",
			criteria: Criteria{Search: "android.b", Status: All, Category: All, Tier: All},
			want:     []string{"com.android.bluetooth", "com.samsung.android.bixby"},
		},
		{
			name:     "search is case sensitive",
			criteria: Criteria{Search: "widget", Status: All, Category: All, Tier: All},
			want:     []string{},
		},
		{
			name:     "conjunction of all four",
			criteria: Criteria{Search: "android", Status: string(Installed), Category: "google", Tier: TierSafe},
			want:     []string{"com.google.android.youtube"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rowNames(Recompute(sampleInventory(), tt.criteria, NewSelection()))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("visible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecompute_MatchesIffAllPredicates(t *testing.T) {
	inv := sampleInventory()
	statuses := []string{All, string(Installed), string(Uninstalled)}
	categories := []string{All, "google", "oem", "aosp", DefaultCategory}
	tiers := append([]string{All, TierUnknown}, Tiers()...)
	searches := []string{"", "android", "com.", "zzz"}

	for _, st := range statuses {
		for _, cat := range categories {
			for _, tier := range tiers {
				for _, search := range searches {
					c := Criteria{Search: search, Status: st, Category: cat, Tier: tier}
					visible := make(map[string]bool)
					for _, r := range Recompute(inv, c, nil) {
						visible[r.Name] = true
					}
					for _, p := range inv.Packages() {
						if visible[p.Name] != Matches(p, c) {
							t.Fatalf("criteria %+v: %s visible=%v, Matches=%v", c, p.Name, visible[p.Name], Matches(p, c))
						}
					}
				}
			}
		}
	}
}

func TestRecompute_Idempotent(t *testing.T) {
	inv := sampleInventory()
	sel := NewSelection()
	sel.Toggle("com.android.chrome")
	c := Criteria{Status: All, Category: All, Tier: All}

	first := Recompute(inv, c, sel)
	second := Recompute(inv, c, sel)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Recompute not idempotent:\n%v\n%v", first, second)
	}
}

func TestRecompute_ByteOrderSort(t *testing.T) {
	inv := New([]Package{
		{Name: "b.app", Status: Installed},
		{Name: "B.app", Status: Installed},
		{Name: "a.app", Status: Installed},
	})

	got := rowNames(Recompute(inv, Criteria{Status: All, Category: All, Tier: All}, nil))
	want := []string{"B.app", "a.app", "b.app"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("visible = %v, want %v", got, want)
	}
}

func TestRecompute_SelectedFlagFollowsSelection(t *testing.T) {
	inv := sampleInventory()
	sel := NewSelection()
	sel.Toggle("com.google.android.youtube")

	for _, r := range Recompute(inv, DefaultCriteria(), sel) {
		want := r.Name == "com.google.android.youtube"
		if r.Selected != want {
			t.Errorf("%s: Selected = %v, want %v", r.Name, r.Selected, want)
		}
	}
}

func TestSelection_PersistsAcrossFilterChanges(t *testing.T) {
	inv := sampleInventory()
	sel := NewSelection()
	sel.Toggle("com.google.android.youtube")

	// Hide it behind another category, then bring it back.
	hidden := Criteria{Status: string(Installed), Category: "aosp", Tier: All}
	for _, r := range Recompute(inv, hidden, sel) {
		if r.Name == "com.google.android.youtube" {
			t.Fatal("package should be hidden by the category filter")
		}
	}
	if !sel.Contains("com.google.android.youtube") {
		t.Fatal("selection lost while hidden")
	}

	var found bool
	for _, r := range Recompute(inv, DefaultCriteria(), sel) {
		if r.Name == "com.google.android.youtube" {
			found = true
			if !r.Selected {
				t.Error("package should still be selected after filter revert")
			}
		}
	}
	if !found {
		t.Error("package should be visible again")
	}
}

func TestPendingAndHiddenSelections(t *testing.T) {
	inv := sampleInventory()
	sel := NewSelection()
	sel.Toggle("com.google.android.youtube")
	sel.Toggle("com.samsung.android.bixby")

	visible := Recompute(inv, DefaultCriteria(), sel)

	if got := rowNames(Pending(visible)); !reflect.DeepEqual(got, []string{"com.google.android.youtube"}) {
		t.Errorf("Pending() = %v", got)
	}
	if got := HiddenSelections(visible, sel); !reflect.DeepEqual(got, []string{"com.samsung.android.bixby"}) {
		t.Errorf("HiddenSelections() = %v", got)
	}
}
