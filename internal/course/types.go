// Package course holds the read-only course model and the sources it is
// fetched from. Module and chapter order is progression order.
package course

// ChapterType identifies how a chapter is presented and completed.
type ChapterType string

const (
	TypeVideo        ChapterType = "video"
	TypeDocument     ChapterType = "document"
	TypeTask         ChapterType = "task"
	TypeDownloadable ChapterType = "downloadable"
	TypeQuiz         ChapterType = "quiz"
)

// typeAliases maps the vocabulary used by published course documents.
var typeAliases = map[string]ChapterType{
	"youtube":  TypeVideo,
	"pdf":      TypeDocument,
	"download": TypeDownloadable,
}

// Course is a fetched course document. It is never mutated after Decode.
type Course struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Modules []Module `json:"modules"`
}

// Module is an ordered group of chapters gating access to the next module.
type Module struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Chapters []Chapter `json:"chapters"`
}

// Chapter is an atomic content unit. Only the fields relevant to Type are set.
type Chapter struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Type        ChapterType `json:"type"`
	VideoID     string      `json:"videoId,omitempty"`
	URL         string      `json:"url,omitempty"`
	Description string      `json:"description,omitempty"`
	FileName    string      `json:"fileName,omitempty"`
	Checklist   []string    `json:"checklist,omitempty"`
	Questions   []Question  `json:"questions,omitempty"`
}

// Question is one multiple-choice question of a quiz chapter.
type Question struct {
	Prompt  string   `json:"q"`
	Options []string `json:"a"`
	Correct string   `json:"correct"`
}

// IsQuiz reports whether the chapter can only be completed by passing a quiz.
func (c Chapter) IsQuiz() bool {
	return c.Type == TypeQuiz
}

// Position locates a chapter inside a course.
type Position struct {
	Module  int
	Chapter int
}

// Locate returns the position of the chapter with the given id.
func (c *Course) Locate(chapterID string) (Position, bool) {
	for mi, m := range c.Modules {
		for ci, ch := range m.Chapters {
			if ch.ID == chapterID {
				return Position{Module: mi, Chapter: ci}, true
			}
		}
	}
	return Position{}, false
}

// Chapter returns the chapter with the given id.
func (c *Course) Chapter(id string) (*Chapter, bool) {
	pos, ok := c.Locate(id)
	if !ok {
		return nil, false
	}
	return &c.Modules[pos.Module].Chapters[pos.Chapter], true
}

// ModuleIndex returns the index of the module with the given id, or -1.
func (c *Course) ModuleIndex(id string) int {
	for i, m := range c.Modules {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// IsLastChapter reports whether pos is the final chapter of its module.
func (c *Course) IsLastChapter(pos Position) bool {
	return pos.Chapter == len(c.Modules[pos.Module].Chapters)-1
}

// IsLastModule reports whether index is the final module of the course.
func (c *Course) IsLastModule(index int) bool {
	return index == len(c.Modules)-1
}

// ChapterCount returns the number of chapters across all modules.
func (c *Course) ChapterCount() int {
	n := 0
	for _, m := range c.Modules {
		n += len(m.Chapters)
	}
	return n
}
