package lookup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/SortCode/internal/domain"
)

func TestSession_WardIsPassedExplicitly(t *testing.T) {
	e := newEngine(t, StandardPolicy(), fixture()...)
	s1, s2 := NewSession(e), NewSession(e)

	require.NoError(t, s1.SelectWard(nakagyo))
	assert.Equal(t, domain.KindOne, s1.Lookup("0911", domain.ModePostal).Kind)
	// 另一个会话没有选区，互不影响。
	assert.Equal(t, domain.KindWardRequired, s2.Lookup("0911", domain.ModePostal).Kind)

	s1.ClearWard()
	assert.Empty(t, s1.Ward())
	assert.Equal(t, domain.KindWardRequired, s1.Lookup("0911", domain.ModePostal).Kind)
}

func TestSession_SelectUnknownWard(t *testing.T) {
	e := newEngine(t, StandardPolicy(), fixture()...)
	s := NewSession(e)

	err := s.SelectWard("北区")
	assert.True(t, errors.Is(err, ErrUnknownWard), "err=%v", err)
	assert.Empty(t, s.Ward())

	notReady, err := New(StandardPolicy())
	require.NoError(t, err)
	assert.ErrorIs(t, NewSession(notReady).SelectWard(nakagyo), ErrNotReady)
}
