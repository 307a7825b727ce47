package game

import (
	"time"

	"wikirally/internal/models"
)

// Status is the terminal-condition decision for a decoded game state.
type Status int

const (
	StatusInProgress Status = iota
	StatusCleared
	StatusOver
)

// Outcome carries the decision plus the score payload for a cleared game.
type Outcome struct {
	Status        Status
	UsedClicks    int
	ElapsedMillis int64
}

// Evaluate decides whether the game continues, is cleared, or is over.
// Reaching the target wins unconditionally, even with a spent click budget.
// The engine only reads state; clicks are consumed by link navigation alone.
func Evaluate(st models.GameState, initialClicks int, now time.Time) Outcome {
	if st.CurrentPage == st.TargetPage {
		used := initialClicks - st.ClicksRemaining
		elapsed := int64(0)
		if st.StartedAtMillis > 0 {
			elapsed = now.UnixMilli() - st.StartedAtMillis
		} else {
			// No usable start timestamp: estimate from clicks used.
			elapsed = int64(used) * 2000
		}
		return Outcome{Status: StatusCleared, UsedClicks: used, ElapsedMillis: elapsed}
	}
	if st.ClicksRemaining <= 0 {
		return Outcome{Status: StatusOver}
	}
	return Outcome{Status: StatusInProgress}
}
