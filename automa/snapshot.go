package automa

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// snapshotFormatVersion is bumped whenever the serialized shape of
// snapshotState changes incompatibly.
const snapshotFormatVersion = 1

// Snapshot is the opaque, persistable representation of a suspended
// GraphAutoma run, returned inside an InteractionException and accepted
// back by Run via WithFeedbacks + LoadFromSnapshot (spec.md §4.7).
type Snapshot struct {
	FormatVersion int
	Bytes         []byte
}

// snapshotState is the JSON-serializable persistent-state payload. Field
// names are part of the on-disk contract: keep them stable across releases
// of the same FormatVersion.
type snapshotState struct {
	InputArgs        []any                     `json:"input_args"`
	InputKwargs      map[string]any            `json:"input_kwargs"`
	OutputBuffer     map[string]any            `json:"output_buffer"`
	OutputWorkerKey  string                    `json:"output_worker_key"`
	DynamicTriggers  map[string][]string       `json:"dynamic_triggers"`
	CurrentKickoff   []kickoffSnapshot         `json:"current_kickoff"`
	Interactions     []interactionSnapshot     `json:"interactions"`
	// SuspendedKickoff carries the KickoffInfo each suspended worker was
	// invoked with, keyed by worker key, so a GraphAutoma reconstructed from
	// this snapshot (not the original in-memory instance) can still re-invoke
	// it on resume instead of only the instance that originally suspended.
	SuspendedKickoff map[string]kickoffSnapshot `json:"suspended_kickoff,omitempty"`
	WorkerIdxCursors map[string]int            `json:"worker_interaction_indices"`
	LocalSpaces      map[string]map[string]any `json:"local_spaces,omitempty"`
}

type kickoffSnapshot struct {
	WorkerKey   string         `json:"worker_key"`
	LastKickoff string         `json:"last_kickoff"`
	FromFerry   bool           `json:"from_ferry"`
	Args        []any          `json:"args"`
	Kwargs      map[string]any `json:"kwargs"`
}

type interactionSnapshot struct {
	WorkerKey   string   `json:"worker_key"`
	Interaction Interaction `json:"interaction"`
}

// Snapshot serializes the GraphAutoma's persistent state (spec.md §3) into a
// portable Snapshot, for durable storage (store.Store) or for round-tripping
// through an InteractionException.
func (g *GraphAutoma) Snapshot() (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *GraphAutoma) snapshotLocked() (Snapshot, error) {
	state := snapshotState{
		InputArgs:        g.inputArgs,
		InputKwargs:      g.inputKwargs,
		OutputBuffer:      g.outputBuffer,
		OutputWorkerKey:  g.outputWorkerKey,
		DynamicTriggers:  make(map[string][]string, len(g.dynamicTriggers)),
		WorkerIdxCursors: g.workerInteractionIndices,
		LocalSpaces:      make(map[string]map[string]any),
	}
	for k, set := range g.dynamicTriggers {
		triggers := make([]string, 0, len(set))
		for t := range set {
			triggers = append(triggers, t)
		}
		state.DynamicTriggers[k] = triggers
	}
	for _, ki := range g.currentKickoff {
		state.CurrentKickoff = append(state.CurrentKickoff, kickoffSnapshot{
			WorkerKey: ki.WorkerKey, LastKickoff: ki.LastKickoff,
			FromFerry: ki.FromFerry, Args: ki.Args, Kwargs: ki.Kwargs,
		})
	}
	for workerKey, pending := range g.ongoingInteractions {
		for _, p := range pending {
			if p.feedback == nil {
				state.Interactions = append(state.Interactions, interactionSnapshot{WorkerKey: workerKey, Interaction: p.interaction})
			}
		}
	}
	if len(g.suspendedKickoff) > 0 {
		state.SuspendedKickoff = make(map[string]kickoffSnapshot, len(g.suspendedKickoff))
		for key, ki := range g.suspendedKickoff {
			state.SuspendedKickoff[key] = kickoffSnapshot{
				WorkerKey: ki.WorkerKey, LastKickoff: ki.LastKickoff,
				FromFerry: ki.FromFerry, Args: ki.Args, Kwargs: ki.Kwargs,
			}
		}
	}
	for key, gw := range g.workers {
		if len(gw.localSpace) > 0 {
			state.LocalSpaces[key] = gw.localSpace
		}
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return Snapshot{}, &RuntimeError{Code: "snapshot_marshal", Message: "failed to marshal snapshot state", Cause: err}
	}
	return Snapshot{FormatVersion: snapshotFormatVersion, Bytes: raw}, nil
}

// LoadFromSnapshot restores persistent state captured by Snapshot. It must
// be called on a GraphAutoma whose worker graph (keys, dependencies) is
// already declared identically to the one the snapshot came from; the
// snapshot carries runtime state, not topology.
func (g *GraphAutoma) LoadFromSnapshot(snap Snapshot) error {
	if snap.FormatVersion != snapshotFormatVersion {
		return &RuntimeError{Code: "snapshot_version_mismatch", Message: "snapshot format version mismatch"}
	}
	var state snapshotState
	if err := json.Unmarshal(snap.Bytes, &state); err != nil {
		return &RuntimeError{Code: "snapshot_unmarshal", Message: "failed to unmarshal snapshot state", Cause: err}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.inputArgs = state.InputArgs
	g.inputKwargs = state.InputKwargs
	g.outputBuffer = state.OutputBuffer
	if g.outputBuffer == nil {
		g.outputBuffer = make(map[string]any)
	}
	g.outputWorkerKey = state.OutputWorkerKey
	g.dynamicTriggers = make(map[string]map[string]struct{}, len(state.DynamicTriggers))
	for k, triggers := range state.DynamicTriggers {
		set := make(map[string]struct{}, len(triggers))
		for _, t := range triggers {
			set[t] = struct{}{}
		}
		g.dynamicTriggers[k] = set
	}
	g.currentKickoff = g.currentKickoff[:0]
	for _, ks := range state.CurrentKickoff {
		g.currentKickoff = append(g.currentKickoff, KickoffInfo{
			WorkerKey: ks.WorkerKey, LastKickoff: ks.LastKickoff,
			FromFerry: ks.FromFerry, Args: ks.Args, Kwargs: ks.Kwargs,
		})
	}
	g.ongoingInteractions = make(map[string][]interactionFeedbackPair)
	for _, is := range state.Interactions {
		g.ongoingInteractions[is.WorkerKey] = append(g.ongoingInteractions[is.WorkerKey], interactionFeedbackPair{interaction: is.Interaction})
	}
	g.suspendedKickoff = make(map[string]KickoffInfo, len(state.SuspendedKickoff))
	for key, ks := range state.SuspendedKickoff {
		g.suspendedKickoff[key] = KickoffInfo{
			WorkerKey: ks.WorkerKey, LastKickoff: ks.LastKickoff,
			FromFerry: ks.FromFerry, Args: ks.Args, Kwargs: ks.Kwargs,
		}
	}
	g.workerInteractionIndices = state.WorkerIdxCursors
	if g.workerInteractionIndices == nil {
		g.workerInteractionIndices = make(map[string]int)
	}
	for key, space := range state.LocalSpaces {
		if gw, ok := g.workers[key]; ok {
			gw.localSpace = space
		}
	}
	return nil
}

// SnapshotJSON renders a Snapshot's payload as JSON text via gjson, a
// debugging aid for operators inspecting persisted runs from the CLI or a
// store dump.
func (s Snapshot) SnapshotJSON() string {
	return gjson.ParseBytes(s.Bytes).String()
}

// WithOutputBufferEntry returns a copy of the snapshot's JSON with a single
// output_buffer field overridden, useful for store migrations or manual
// state surgery without re-marshaling the whole struct.
func (s Snapshot) WithOutputBufferEntry(workerKey string, value any) (Snapshot, error) {
	updated, err := sjson.SetBytes(s.Bytes, "output_buffer."+workerKey, value)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{FormatVersion: s.FormatVersion, Bytes: updated}, nil
}
