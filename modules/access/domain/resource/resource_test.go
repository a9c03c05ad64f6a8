package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystem_Kind(t *testing.T) {
	t.Parallel()
	assert.Equal(t, KindAccountOwned, SystemMail.Kind())
	assert.Equal(t, KindProjectScoped, SystemRepo.Kind())
	assert.Equal(t, KindGlobal, SystemTracker.Kind())
}

func TestValidLevel(t *testing.T) {
	t.Parallel()
	assert.True(t, ValidLevel(SystemMail, LevelReadOnly))
	assert.False(t, ValidLevel(SystemMail, LevelComment))
	assert.True(t, ValidLevel(SystemTracker, LevelCreateEdit))
	assert.False(t, ValidLevel(SystemTracker, LevelReadWrite))
}

func TestDowngrade_Cascade(t *testing.T) {
	t.Parallel()

	next, ok := Downgrade(LevelReadWrite)
	assert.True(t, ok)
	assert.Equal(t, LevelReadOnly, next)

	next, ok = Downgrade(LevelCreateEdit)
	assert.True(t, ok)
	assert.Equal(t, LevelComment, next)

	next, ok = Downgrade(LevelComment)
	assert.True(t, ok)
	assert.Equal(t, LevelView, next)

	_, ok = Downgrade(LevelAdmin)
	assert.False(t, ok)

	_, ok = Downgrade(LevelReadOnly)
	assert.False(t, ok)
}
