package resource

// System is a target service access can be requested for.
type System string

const (
	// SystemMail is account-owned: the resource is a specific person's
	// mailbox and that person must consent to access.
	SystemMail System = "mail"
	// SystemRepo is project-scoped source control.
	SystemRepo System = "repo"
	// SystemTracker is the issue tracker.
	SystemTracker System = "tracker"
)

// Kind describes how a system scopes its resources.
type Kind int

const (
	KindGlobal Kind = iota
	KindProjectScoped
	KindAccountOwned
)

func (s System) Valid() bool {
	switch s {
	case SystemMail, SystemRepo, SystemTracker:
		return true
	}
	return false
}

func (s System) Kind() Kind {
	switch s {
	case SystemRepo:
		return KindProjectScoped
	case SystemMail:
		return KindAccountOwned
	default:
		return KindGlobal
	}
}

func (s System) String() string {
	return string(s)
}

// Level is a requested access tier.
type Level string

const (
	LevelReadOnly   Level = "read-only"
	LevelReadWrite  Level = "read-write"
	LevelView       Level = "view"
	LevelComment    Level = "comment"
	LevelCreateEdit Level = "create-edit"
	LevelAdmin      Level = "admin"
)

func (l Level) String() string {
	return string(l)
}

// ReadTier reports whether the level only exposes existing data. Read-tier
// levels signal high confidence to the UI.
func (l Level) ReadTier() bool {
	return l == LevelReadOnly || l == LevelView
}

// WriteTier reports whether the level mutates the resource.
func (l Level) WriteTier() bool {
	return l == LevelReadWrite || l == LevelCreateEdit
}

// levelsPerSystem is the closed set of levels each system understands,
// ordered from least to most privileged.
var levelsPerSystem = map[System][]Level{
	SystemMail:    {LevelReadOnly, LevelReadWrite, LevelAdmin},
	SystemRepo:    {LevelReadOnly, LevelReadWrite, LevelAdmin},
	SystemTracker: {LevelView, LevelComment, LevelCreateEdit, LevelAdmin},
}

// LevelsFor returns the levels the system understands.
func LevelsFor(s System) []Level {
	levels := levelsPerSystem[s]
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// ValidLevel reports whether the level exists for the system.
func ValidLevel(s System, l Level) bool {
	for _, candidate := range levelsPerSystem[s] {
		if candidate == l {
			return true
		}
	}
	return false
}

// downgrades is the deterministic downgrade cascade applied when the exact
// requested level is not permitted. Admin never downgrades.
var downgrades = map[Level]Level{
	LevelReadWrite:  LevelReadOnly,
	LevelCreateEdit: LevelComment,
	LevelComment:    LevelView,
}

// Downgrade returns the next lower level in the cascade, if any.
func Downgrade(l Level) (Level, bool) {
	next, ok := downgrades[l]
	return next, ok
}
