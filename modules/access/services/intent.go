package services

import (
	"strings"

	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
)

// Guess is the best-effort reading of a single chat message. Empty
// fields mean the message said nothing about them; the conversation
// state decides what a filled field means in context.
type Guess struct {
	System         resource.System
	Level          resource.Level
	ProjectID      string
	MailboxOwnerID string
	Reset          bool
}

// systemKeywords are tried in order; the first hit wins when a message
// mentions several systems.
var systemKeywords = []struct {
	keyword string
	system  resource.System
}{
	{"mailbox", resource.SystemMail},
	{"mail", resource.SystemMail},
	{"email", resource.SystemMail},
	{"inbox", resource.SystemMail},
	{"repository", resource.SystemRepo},
	{"repo", resource.SystemRepo},
	{"git", resource.SystemRepo},
	{"tracker", resource.SystemTracker},
	{"tickets", resource.SystemTracker},
	{"ticket", resource.SystemTracker},
	{"issues", resource.SystemTracker},
	{"issue", resource.SystemTracker},
}

// levelPhrases are tried in order so that compound phrases win over
// their substrings ("read-write" before "read").
var levelPhrases = []struct {
	phrase string
	level  resource.Level
}{
	{"read-write", resource.LevelReadWrite},
	{"read write", resource.LevelReadWrite},
	{"read and write", resource.LevelReadWrite},
	{"write", resource.LevelReadWrite},
	{"push", resource.LevelReadWrite},
	{"read-only", resource.LevelReadOnly},
	{"read only", resource.LevelReadOnly},
	{"readonly", resource.LevelReadOnly},
	{"read", resource.LevelReadOnly},
	{"create-edit", resource.LevelCreateEdit},
	{"create and edit", resource.LevelCreateEdit},
	{"create", resource.LevelCreateEdit},
	{"edit", resource.LevelCreateEdit},
	{"comment", resource.LevelComment},
	{"admin", resource.LevelAdmin},
	{"administrator", resource.LevelAdmin},
	{"view", resource.LevelView},
	{"see", resource.LevelView},
	{"look", resource.LevelView},
}

var resetPhrases = []string{"reset", "start over", "start again", "never mind", "nevermind", "cancel"}

// ExtractIntent scans a free-form message for system, level, project and
// person mentions. It is deliberately forgiving: anything it cannot
// place is left empty and the conversation asks for it explicitly.
func ExtractIntent(text string, people []*directory.Person, projects []*directory.Project) Guess {
	normalized := normalize(text)
	padded := " " + normalized + " "

	var g Guess

	for _, phrase := range resetPhrases {
		if strings.Contains(padded, " "+phrase+" ") {
			g.Reset = true
			return g
		}
	}

	for _, sk := range systemKeywords {
		if strings.Contains(padded, " "+sk.keyword+" ") {
			g.System = sk.system
			break
		}
	}

	for _, lp := range levelPhrases {
		if strings.Contains(padded, " "+lp.phrase+" ") {
			g.Level = lp.level
			break
		}
	}

	for _, project := range projects {
		if containsName(padded, project.ID) || containsName(padded, project.Name) {
			g.ProjectID = project.ID
			break
		}
	}

	for _, person := range people {
		if containsName(padded, person.ID) || containsName(padded, person.Name) {
			g.MailboxOwnerID = person.ID
			break
		}
	}

	return g
}

func containsName(padded, name string) bool {
	name = normalize(name)
	if name == "" {
		return false
	}
	return strings.Contains(padded, " "+name+" ")
}

// normalize lowercases and strips punctuation so keyword matching works
// on word boundaries. Hyphens survive because level names carry them;
// possessives ("dmitry's") split off the trailing s.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
