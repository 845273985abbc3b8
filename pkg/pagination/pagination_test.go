package pagination

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       Params
		page     int
		pageSize int
	}{
		{name: "defaults", in: Params{}, page: 1, pageSize: DefaultPageSize},
		{name: "negative page", in: Params{Page: -3, PageSize: 10}, page: 1, pageSize: 10},
		{name: "capped size", in: Params{Page: 2, PageSize: 5000}, page: 2, pageSize: MaxPageSize},
		{name: "passthrough", in: Params{Page: 4, PageSize: 25}, page: 4, pageSize: 25},
	}

	for _, tt := range tests {
		got := tt.in.Normalize()
		if got.Page != tt.page || got.PageSize != tt.pageSize {
			t.Fatalf("%s: got %+v", tt.name, got)
		}
	}
}

func TestOffset(t *testing.T) {
	p := Params{Page: 3, PageSize: 10}.Normalize()
	if p.Offset() != 20 {
		t.Fatalf("expected offset 20, got %d", p.Offset())
	}
}

func TestMetaFor(t *testing.T) {
	p := Params{Page: 1, PageSize: 10}.Normalize()
	meta := MetaFor(p, 25)
	if meta.Pages != 3 {
		t.Fatalf("expected 3 pages for 25 rows, got %d", meta.Pages)
	}
	if meta.Total != 25 || meta.Page != 1 || meta.PageSize != 10 {
		t.Fatalf("unexpected meta %+v", meta)
	}

	if got := MetaFor(p, 30).Pages; got != 3 {
		t.Fatalf("expected exact division to yield 3 pages, got %d", got)
	}
}
