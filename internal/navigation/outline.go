package navigation

import (
	"github.com/p-n-ai/stream-course/internal/course"
)

// Outline is the dashboard view of a course for one user.
type Outline struct {
	CourseID   string          `json:"courseId"`
	CourseName string          `json:"courseName"`
	Modules    []ModuleOutline `json:"modules"`
	Complete   bool            `json:"complete"`
}

// ModuleOutline describes one module. Chapters of locked modules are hidden.
type ModuleOutline struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Unlocked bool             `json:"unlocked"`
	Complete bool             `json:"complete"`
	Chapters []ChapterOutline `json:"chapters,omitempty"`
}

// ChapterOutline describes one chapter of an unlocked module.
type ChapterOutline struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Type     course.ChapterType `json:"type"`
	Complete bool               `json:"complete"`
}

// BuildOutline computes the outline from the current snapshot.
func BuildOutline(c *course.Course, p Progress) Outline {
	o := Outline{
		CourseID:   c.ID,
		CourseName: c.Name,
		Modules:    make([]ModuleOutline, 0, len(c.Modules)),
		Complete:   CourseComplete(c, p),
	}

	for i, m := range c.Modules {
		mo := ModuleOutline{
			ID:       m.ID,
			Name:     m.Name,
			Unlocked: IsModuleUnlocked(c, p, i),
			Complete: p.IsComplete(m.ID),
		}
		if mo.Unlocked {
			for _, ch := range m.Chapters {
				mo.Chapters = append(mo.Chapters, ChapterOutline{
					ID:       ch.ID,
					Title:    ch.Title,
					Type:     ch.Type,
					Complete: p.IsComplete(ch.ID),
				})
			}
		}
		o.Modules = append(o.Modules, mo)
	}
	return o
}
