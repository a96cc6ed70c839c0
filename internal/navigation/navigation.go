package navigation

import (
	"github.com/p-n-ai/stream-course/internal/course"
)

// Progress is the read side of a progress record.
type Progress interface {
	IsComplete(entityID string) bool
}

// Page names a screen the client should show.
type Page string

const (
	PageLanding         Page = "landing"
	PageSignup          Page = "signup"
	PageLogin           Page = "login"
	PageDashboard       Page = "dashboard"
	PageChapter         Page = "chapter"
	PageCongratulations Page = "congratulations"
)

// Intent is a navigation the client should perform. The core never
// navigates on its own.
type Intent struct {
	Page      Page   `json:"page"`
	ChapterID string `json:"chapterId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
}

// StepKind classifies the result of FindNext.
type StepKind int

const (
	// StepChapter: Chapter is the next chapter.
	StepChapter StepKind = iota
	// StepGated: the next chapter is in another module and the current
	// module is not complete. Refusal explains why.
	StepGated
	// StepEnd: there is no next chapter.
	StepEnd
)

func (k StepKind) String() string {
	switch k {
	case StepChapter:
		return "chapter"
	case StepGated:
		return "gated"
	default:
		return "end"
	}
}

// Step is the result of FindNext.
type Step struct {
	Kind    StepKind
	Chapter *course.Chapter
	Refusal *Refusal
}

// IsModuleUnlocked reports whether module index is reachable: the first module
// always is, any other only when the module before it is complete.
func IsModuleUnlocked(c *course.Course, p Progress, index int) bool {
	if index < 0 || index >= len(c.Modules) {
		return false
	}
	if index == 0 {
		return true
	}
	return p.IsComplete(c.Modules[index-1].ID)
}

// CourseComplete reports whether every module of the course is complete.
func CourseComplete(c *course.Course, p Progress) bool {
	for _, m := range c.Modules {
		if !p.IsComplete(m.ID) {
			return false
		}
	}
	return true
}

// First returns the first chapter of the course.
func First(c *course.Course) (*course.Chapter, bool) {
	if len(c.Modules) == 0 || len(c.Modules[0].Chapters) == 0 {
		return nil, false
	}
	return &c.Modules[0].Chapters[0], true
}

// CheckAccess returns the position of a chapter whose module is unlocked.
func CheckAccess(c *course.Course, p Progress, chapterID string) (course.Position, error) {
	pos, ok := c.Locate(chapterID)
	if !ok {
		return course.Position{}, Refuse(CodeUnknownChapter, ErrUnknownChapter, "Chapter %q does not exist.", chapterID)
	}
	if !IsModuleUnlocked(c, p, pos.Module) {
		return pos, Refuse(CodeStaleNavigation, ErrStaleNavigation,
			"Module %q is locked.", c.Modules[pos.Module].Name)
	}
	return pos, nil
}

// FindNext returns the chapter after chapterID. Within a module this is the
// next chapter; at a module boundary it is the first chapter of the next
// module, gated on the current module being complete.
func FindNext(c *course.Course, p Progress, chapterID string) (Step, error) {
	pos, ok := c.Locate(chapterID)
	if !ok {
		return Step{}, Refuse(CodeUnknownChapter, ErrUnknownChapter, "Chapter %q does not exist.", chapterID)
	}

	current := c.Modules[pos.Module]
	if !c.IsLastChapter(pos) {
		return Step{Kind: StepChapter, Chapter: &c.Modules[pos.Module].Chapters[pos.Chapter+1]}, nil
	}

	if c.IsLastModule(pos.Module) {
		return Step{Kind: StepEnd}, nil
	}

	next := c.Modules[pos.Module+1]
	if len(next.Chapters) == 0 {
		return Step{Kind: StepEnd}, nil
	}

	if !p.IsComplete(current.ID) {
		return Step{
			Kind: StepGated,
			Refusal: Refuse(CodeModuleGated, ErrStaleNavigation,
				"You must complete the assignment for %q to proceed.", current.Name),
		}, nil
	}

	return Step{Kind: StepChapter, Chapter: &c.Modules[pos.Module+1].Chapters[0]}, nil
}

// Advance turns FindNext into an intent. The end of the course with every
// module complete is the finished state; an end reached any other way is a
// reportable inconsistency.
func Advance(c *course.Course, p Progress, chapterID string) (Intent, error) {
	step, err := FindNext(c, p, chapterID)
	if err != nil {
		return Intent{}, err
	}

	switch step.Kind {
	case StepChapter:
		return Intent{Page: PageChapter, ChapterID: step.Chapter.ID}, nil
	case StepGated:
		return Intent{}, step.Refusal
	}

	if CourseComplete(c, p) {
		return Intent{Page: PageCongratulations, Finished: true}, nil
	}
	return Intent{}, Refuse(CodeNoSuccessor, ErrNoSuccessor,
		"Chapter %q has no successor and the course is not finished.", chapterID)
}

// Effects lists what completing a chapter changes.
type Effects struct {
	ChapterID string
	// ModuleID is set only when the chapter is the last of its module.
	ModuleID    string
	ModuleName  string
	ModuleIndex int
	LastModule  bool
}

// Entities returns the ids to mark complete, chapter first.
func (e Effects) Entities() []string {
	if e.ModuleID == "" {
		return []string{e.ChapterID}
	}
	return []string{e.ChapterID, e.ModuleID}
}

// CompletesModule reports whether the chapter completes its module.
func (e Effects) CompletesModule() bool {
	return e.ModuleID != ""
}

// CompletesCourse reports whether the chapter completes the final module.
func (e Effects) CompletesCourse() bool {
	return e.ModuleID != "" && e.LastModule
}

// CompletionEffects computes the effects of completing chapterID. A module is
// complete exactly when its last chapter is, so this is evaluated on every
// completion rather than cached.
func CompletionEffects(c *course.Course, chapterID string) (Effects, error) {
	pos, ok := c.Locate(chapterID)
	if !ok {
		return Effects{}, Refuse(CodeUnknownChapter, ErrUnknownChapter, "Chapter %q does not exist.", chapterID)
	}

	m := c.Modules[pos.Module]
	e := Effects{
		ChapterID:   chapterID,
		ModuleName:  m.Name,
		ModuleIndex: pos.Module,
		LastModule:  c.IsLastModule(pos.Module),
	}
	if c.IsLastChapter(pos) {
		e.ModuleID = m.ID
	}
	return e, nil
}
