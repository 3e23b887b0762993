package notice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-console/internal/models"
)

func TestBoardExpiresAfterTTL(t *testing.T) {
	board := NewBoard(40 * time.Millisecond)
	defer board.Close()

	shown := board.Show("Saved", models.NoticeSuccess)
	assert.Equal(t, shown.ShownAt.Add(40*time.Millisecond), shown.ExpiresAt)

	n, ok := board.Current()
	require.True(t, ok)
	assert.Equal(t, "Saved", n.Text)

	assert.Eventually(t, func() bool {
		_, ok := board.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestBoardReplacementRearmsTimer(t *testing.T) {
	board := NewBoard(200 * time.Millisecond)
	defer board.Close()

	board.Show("first", models.NoticeNeutral)
	time.Sleep(120 * time.Millisecond)
	board.Show("second", models.NoticeSuccess)
	time.Sleep(120 * time.Millisecond)

	n, ok := board.Current()
	require.True(t, ok, "the first timer must not clear the replacement")
	assert.Equal(t, "second", n.Text)
}

func TestNavigationMessageReplacesImmediately(t *testing.T) {
	board := NewBoard(time.Minute)
	defer board.Close()
	flash := &Flash{}

	board.Show("Deleted Successfully", models.NoticeDestructive)
	flash.Push(models.NavigationMessage{Message: "School updated", Status: models.NavigationSuccess})

	n, ok := board.ShowNavigation(flash)
	require.True(t, ok)
	assert.Equal(t, "School updated", n.Text)
	assert.Equal(t, models.NoticeSuccess, n.Kind)

	current, _ := board.Current()
	assert.Equal(t, "School updated", current.Text)
}

func TestFlashIsDeliveredOnce(t *testing.T) {
	flash := &Flash{}
	flash.Push(models.NavigationMessage{Message: "oops", Status: models.NavigationFailed})

	msg, ok := flash.Consume()
	require.True(t, ok)
	assert.Equal(t, models.NoticeFailure, msg.Kind())

	_, ok = flash.Consume()
	assert.False(t, ok)
}

func TestClosedBoardIgnoresShow(t *testing.T) {
	board := NewBoard(time.Minute)
	board.Show("x", models.NoticeNeutral)
	board.Close()

	board.Show("y", models.NoticeNeutral)
	_, ok := board.Current()
	assert.False(t, ok)
}

func TestClearStopsTimer(t *testing.T) {
	board := NewBoard(20 * time.Millisecond)
	defer board.Close()

	board.Show("x", models.NoticeNeutral)
	board.Clear()
	_, ok := board.Current()
	assert.False(t, ok)
}
