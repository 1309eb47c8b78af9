package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTeamName(t *testing.T) {
	require.Equal(t, "", TeamNone.Name())
	require.Equal(t, "red", TeamRed.Name())
	require.Equal(t, "green", TeamGreen.Name())
	require.Equal(t, "blue", TeamBlue.Name())
	require.Equal(t, "yellow", TeamYellow.Name())
	require.Equal(t, "pink", TeamPink.Name())
	require.Equal(t, "", Team(42).Name())
	require.Equal(t, "", Team(-1).Name())
}

func TestTeamColor(t *testing.T) {
	require.Equal(t, ColorWhite, TeamNone.Color())
	require.Equal(t, ColorRed, TeamRed.Color())
	require.Equal(t, ColorPink, TeamPink.Color())

	// Unknown teams fall back to white
	require.Equal(t, ColorWhite, Team(42).Color())
}

func TestTeamChangeMessage(t *testing.T) {
	require.Equal(t, "is no longer on a party.", TeamNone.ChangeMessage())
	require.Equal(t, "has joined the red party.", TeamRed.ChangeMessage())
	require.Equal(t, "has joined the pink party.", TeamPink.ChangeMessage())
	require.Equal(t, "", Team(42).ChangeMessage())
}
