package client

import (
	"github.com/riftline/sabi/internal/game"
	"github.com/riftline/sabi/internal/tick"
)

// Reconciler replays the local simulation forward from a server-confirmed
// tick. The receive pipeline already wrote authoritative component values
// onto the world at that tick (internal/update.Client.Apply); Reconcile's
// job is to treat that as ground truth and resimulate every tick since,
// using the client's own buffered inputs, so prediction catches back up
// to the present without the player seeing a freeze.
type Reconciler struct {
	predictions *PredictionBuffer
	playerID    int
	tolerance   float64
}

// NewReconciler creates a reconciler that replays inputs recorded in
// predictions for the given local player.
func NewReconciler(predictions *PredictionBuffer, playerID int) *Reconciler {
	return &Reconciler{predictions: predictions, playerID: playerID, tolerance: 0.01}
}

// SetTolerance sets the position tolerance used to flag a mismatch
// between the previous prediction and the server-confirmed state.
func (r *Reconciler) SetTolerance(tolerance float64) {
	r.tolerance = tolerance
}

// ReconcileResult reports what one reconciliation pass did.
type ReconcileResult struct {
	RolledBackTo  tick.Network
	ReplayedTicks int
	Mismatch      bool
}

// Reconcile assumes world already holds the server-corrected state at
// rewindTo (written by update.Client.Apply), takes a fresh snapshot of it
// as the new prediction base, then replays every buffered input from
// rewindTo through currentTick, re-recording predicted states as it goes.
func (r *Reconciler) Reconcile(world *game.World, rewindTo, currentTick tick.Network) ReconcileResult {
	result := ReconcileResult{RolledBackTo: rewindTo}

	base := world.Snapshot()
	if previous, ok := r.predictions.GetState(rewindTo); ok {
		result.Mismatch = !game.StatesMatch(&previous, &base, r.tolerance)
	}
	r.predictions.RecordState(base)

	for t := rewindTo.Next(); t.Value() <= currentTick.Value(); t = t.Next() {
		intent, _ := r.predictions.Input(t)
		world.SetPlayerIntent(r.playerID, intent)
		world.Update()
		r.predictions.RecordState(world.Snapshot())
		result.ReplayedTicks++
	}

	r.predictions.PruneBefore(rewindTo)
	return result
}
