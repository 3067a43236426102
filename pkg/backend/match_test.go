package backend

import "testing"

func TestMatchScore(t *testing.T) {
	tests := []struct {
		query, name string
		want        float64
	}{
		{"زيت", "زيت زيتون", 1},
		{"حليب", "حليب كامل الدسم", 1},
		{"ZAYT", "zayt zitoun", 1},
		{"طماطم", "زيت زيتون", 0},
		{"زيت طماطم", "زيت زيتون", 0.5},
		{"عصير", "عصيرة", 1},
		{"", "زيت", 0},
	}
	for _, tt := range tests {
		if got := MatchScore(tt.query, tt.name); got != tt.want {
			t.Errorf("MatchScore(%q, %q) = %v, want %v", tt.query, tt.name, got, tt.want)
		}
	}
}

func TestMatchProducts(t *testing.T) {
	products := []Product{
		{ID: "1", Name: "زيت نباتي"},
		{ID: "2", Name: "حليب"},
		{ID: "3", Name: "زيت زيتون"},
		{ID: "4", Name: "زيتون أخضر"},
	}

	got := MatchProducts("لوّج على زيت زيتون", products)
	if len(got) == 0 || got[0].Product.ID != "3" || got[0].Score != 1 {
		t.Fatalf("best match = %+v, want product 3 with score 1", got)
	}
	if len(got) != 3 {
		t.Errorf("matches = %d, want 3", len(got))
	}

	if got := MatchProducts("لوّج على", products); got != nil {
		t.Errorf("query of only filler words matched %v", got)
	}
}

func TestProductQuery(t *testing.T) {
	if got := ProductQuery("زيد حليب للسلّة"); got != "حليب" {
		t.Errorf("ProductQuery = %q, want %q", got, "حليب")
	}
}
