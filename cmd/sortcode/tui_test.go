package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/SortCode/internal/app"
	"github.com/John-Robertt/SortCode/internal/domain"
	"github.com/John-Robertt/SortCode/internal/lookup"
	"github.com/John-Robertt/SortCode/internal/source"
)

func newTestTUI(t *testing.T, data string) (tuiModel, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	e, err := lookup.New(lookup.StandardPolicy())
	require.NoError(t, err)
	svc := app.NewWithLoader(e, source.Loader{Registry: source.DefaultRegistry()}, path, "auto", nil)
	require.NoError(t, svc.Load(context.Background()))
	return newTUIModel(svc, domain.ModePostal), path
}

func press(t *testing.T, m tuiModel, keys ...tea.KeyMsg) tuiModel {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(tuiModel)
	}
	return m
}

func typeText(s string) []tea.KeyMsg {
	out := make([]tea.KeyMsg, 0, len(s))
	for _, r := range s {
		out = append(out, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return out
}

var (
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyLeft  = tea.KeyMsg{Type: tea.KeyLeft}
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
)

func TestTUI_EachKeyRerunsLookup(t *testing.T) {
	m, _ := newTestTUI(t, fixtureCSV)

	m = press(t, m, typeText("091")...)
	assert.Equal(t, domain.ErrCodeInvalidQueryLength, m.result.Problem)

	m = press(t, m, typeText("1")...)
	assert.Equal(t, domain.KindWardRequired, m.result.Kind)

	// → 选择第一个区（中京区）后自动重新查询。
	m = press(t, m, keyRight)
	assert.Equal(t, "中京区", m.sess.Ward())
	assert.Equal(t, domain.KindOne, m.result.Kind)
	assert.Equal(t, "1234", m.result.Code)
	assert.Contains(t, m.View(), "1234")
}

func TestTUI_WardCycleIncludesNone(t *testing.T) {
	m, _ := newTestTUI(t, fixtureCSV)
	require.Equal(t, []string{"中京区", "下京区"}, m.wards)

	m = press(t, m, keyLeft)
	assert.Equal(t, "下京区", m.sess.Ward())
	m = press(t, m, keyLeft)
	assert.Equal(t, "中京区", m.sess.Ward())
	m = press(t, m, keyLeft)
	assert.Equal(t, "", m.sess.Ward())
	assert.Equal(t, -1, m.wardIdx)
}

func TestTUI_TabCyclesMode(t *testing.T) {
	m, _ := newTestTUI(t, fixtureCSV)

	m = press(t, m, keyTab)
	assert.Equal(t, domain.ModeCode, m.mode)
	m = press(t, m, typeText("2001")...)
	assert.Equal(t, domain.KindOne, m.result.Kind)
	assert.Equal(t, domain.ModeCode, m.result.Mode)

	m = press(t, m, keyTab, keyTab)
	assert.Equal(t, domain.ModePostal, m.mode)
}

func TestTUI_PickCandidate(t *testing.T) {
	m, _ := newTestTUI(t, fixtureCSV)

	m = press(t, m, typeText("6048001")...)
	require.Equal(t, domain.KindManyDifferentCodes, m.result.Kind)

	m = press(t, m, keyDown, keyEnter)
	assert.True(t, m.picked)
	assert.Equal(t, domain.KindOne, m.result.Kind)
	assert.Equal(t, "1301", m.result.Code)
}

func TestTUI_LoadDoneKeepsWardSelection(t *testing.T) {
	m, path := newTestTUI(t, fixtureCSV)
	m = press(t, m, keyRight, keyRight)
	require.Equal(t, "下京区", m.sess.Ward())

	require.NoError(t, os.WriteFile(path, []byte("郵便番号,仕分けコード,住所,区\n6008001,2002,京都市下京区四条通,下京区\n"), 0o644))
	require.NoError(t, m.svc.Load(context.Background()))

	next, _ := m.Update(loadDoneMsg(app.LoadEvent{Records: 1, Wards: 1}))
	m = next.(tuiModel)
	assert.Equal(t, []string{"下京区"}, m.wards)
	assert.Equal(t, "下京区", m.sess.Ward())
	assert.Equal(t, 0, m.wardIdx)
	assert.Contains(t, m.status, "records=1")

	next, _ = m.Update(loadDoneMsg(app.LoadEvent{Err: errors.New("boom"), Kept: true}))
	m = next.(tuiModel)
	assert.True(t, strings.HasPrefix(m.status, "重新加载失败"))
}

func TestTUI_EscQuits(t *testing.T) {
	m, _ := newTestTUI(t, fixtureCSV)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}
