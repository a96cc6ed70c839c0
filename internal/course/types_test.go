package course

import "testing"

func TestCourse_Locate(t *testing.T) {
	c := &Course{
		Modules: []Module{
			{ID: "a", Chapters: []Chapter{{ID: "a1"}, {ID: "a2"}}},
			{ID: "b", Chapters: []Chapter{{ID: "b1"}}},
		},
	}

	tests := []struct {
		id       string
		want     Position
		found    bool
		lastInMd bool
	}{
		{"a1", Position{0, 0}, true, false},
		{"a2", Position{0, 1}, true, true},
		{"b1", Position{1, 0}, true, true},
		{"zz", Position{}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			pos, ok := c.Locate(tt.id)
			if ok != tt.found || pos != tt.want {
				t.Fatalf("Locate(%s) = %v, %v; want %v, %v", tt.id, pos, ok, tt.want, tt.found)
			}
			if ok && c.IsLastChapter(pos) != tt.lastInMd {
				t.Errorf("IsLastChapter(%v) = %v, want %v", pos, !tt.lastInMd, tt.lastInMd)
			}
		})
	}

	if c.ModuleIndex("b") != 1 || c.ModuleIndex("zz") != -1 {
		t.Error("ModuleIndex returned wrong index")
	}
	if !c.IsLastModule(1) || c.IsLastModule(0) {
		t.Error("IsLastModule returned wrong answer")
	}
	if c.ChapterCount() != 3 {
		t.Errorf("ChapterCount() = %d, want 3", c.ChapterCount())
	}
}
