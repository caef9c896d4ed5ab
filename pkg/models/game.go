package models

import (
	"encoding/json"
	"math"
	"time"
	"unicode/utf8"

	"github.com/Ramsey-B/fern/pkg/errs"
)

const (
	gameTypeMinLength = 1
	gameTypeMaxLength = 100
	gameUsersMin      = 1
	gameUsersMax      = 10
)

// Move is a single scored action inside a round. The userId is a weak
// reference resolved against the user namespace by callers, never ownership.
type Move struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Value          float64   `json:"value"`
	ValueDecorated string    `json:"valueDecorated"`
	Time           time.Time `json:"time"`
}

// Round groups moves. Rounds finish one-way; moves are append-only while the
// round and its game are open.
type Round struct {
	ID         string    `json:"id"`
	Moves      []Move    `json:"moves"`
	IsFinished bool      `json:"isFinished"`
	Time       time.Time `json:"time"`
}

// gameDoc is the typed shape of a game's backing JSON. It exists only for
// validation and transforms; the map payload stays the single source of truth.
type gameDoc struct {
	Type       string   `json:"type"`
	UsersIDs   []string `json:"usersIds"`
	Rounds     []Round  `json:"rounds"`
	IsFinished bool     `json:"isFinished"`
}

// GameEntity constrains the payload to {type, usersIds, rounds, isFinished}
// and enforces the round/move state machine. All transforms are pure and
// return a new GameEntity.
type GameEntity struct {
	base
}

// NewGameEntity validates the id grammar and the game data constraints.
func NewGameEntity(id string, data any) (*GameEntity, error) {
	b, err := newBase(id, data)
	if err != nil {
		return nil, err
	}
	if _, err := decodeGameDoc(b.data); err != nil {
		return nil, err
	}
	return &GameEntity{base: b}, nil
}

// GameFactory adapts NewGameEntity to the Factory signature.
func GameFactory(id string, data any) (Entity, error) {
	return NewGameEntity(id, data)
}

// Type returns the game type from the backing JSON.
func (g *GameEntity) Type() string {
	gameType, _ := g.base.data.(map[string]any)["type"].(string)
	return gameType
}

// IsFinished reports whether the game has been finished.
func (g *GameEntity) IsFinished() bool {
	finished, _ := g.base.data.(map[string]any)["isFinished"].(bool)
	return finished
}

// UsersIDs returns the participating user ids from the backing JSON.
func (g *GameEntity) UsersIDs() []string {
	doc, _ := decodeGameDoc(g.base.data)
	return doc.UsersIDs
}

// Rounds returns the decoded rounds from the backing JSON.
func (g *GameEntity) Rounds() []Round {
	doc, _ := decodeGameDoc(g.base.data)
	return doc.Rounds
}

func (g *GameEntity) Merge(partial any) (Entity, error) {
	merged := g.base.mergeData(partial)
	if _, err := decodeGameDoc(merged.data); err != nil {
		return nil, err
	}
	return &GameEntity{base: merged}, nil
}

func (g *GameEntity) WithETag(etag string) Entity {
	return &GameEntity{base: g.base.withETag(etag)}
}

func (g *GameEntity) WithMetadata(meta *Metadata) Entity {
	return &GameEntity{base: g.base.withMetadata(meta)}
}

// AddRound appends a round. Fails if the game is finished or the round id is
// already present.
func (g *GameEntity) AddRound(round Round) (*GameEntity, error) {
	doc, err := decodeGameDoc(g.base.data)
	if err != nil {
		return nil, err
	}
	if doc.IsFinished {
		return nil, errs.NewValidation("isFinished", "cannot add round '%s': game is finished", round.ID)
	}
	for _, existing := range doc.Rounds {
		if existing.ID == round.ID {
			return nil, errs.NewValidation("rounds", "round '%s' already exists", round.ID)
		}
	}
	if err := validateMoves(round.Moves); err != nil {
		return nil, err
	}

	doc.Rounds = append(doc.Rounds, round)
	return g.withDoc(doc)
}

// AddMoveToRound appends a move to an open round of an open game.
func (g *GameEntity) AddMoveToRound(roundID string, move Move) (*GameEntity, error) {
	doc, err := decodeGameDoc(g.base.data)
	if err != nil {
		return nil, err
	}
	if doc.IsFinished {
		return nil, errs.NewValidation("isFinished", "cannot add move to round '%s': game is finished", roundID)
	}
	if err := validateMoves([]Move{move}); err != nil {
		return nil, err
	}

	for i, round := range doc.Rounds {
		if round.ID != roundID {
			continue
		}
		if round.IsFinished {
			return nil, errs.NewValidation("rounds", "cannot add move: round '%s' is finished", roundID)
		}
		doc.Rounds[i].Moves = append(doc.Rounds[i].Moves, move)
		return g.withDoc(doc)
	}

	return nil, errs.NewValidation("rounds", "round '%s' does not exist", roundID)
}

// FinishRound marks a round finished. Finishing an already-finished round is
// an error, not a no-op.
func (g *GameEntity) FinishRound(roundID string) (*GameEntity, error) {
	doc, err := decodeGameDoc(g.base.data)
	if err != nil {
		return nil, err
	}
	if doc.IsFinished {
		return nil, errs.NewValidation("isFinished", "cannot finish round '%s': game is finished", roundID)
	}

	for i, round := range doc.Rounds {
		if round.ID != roundID {
			continue
		}
		if round.IsFinished {
			return nil, errs.NewValidation("rounds", "round '%s' is already finished", roundID)
		}
		doc.Rounds[i].IsFinished = true
		return g.withDoc(doc)
	}

	return nil, errs.NewValidation("rounds", "round '%s' does not exist", roundID)
}

// Finish marks the game finished. Open rounds do not block the transition.
// Finishing twice is an error.
func (g *GameEntity) Finish() (*GameEntity, error) {
	doc, err := decodeGameDoc(g.base.data)
	if err != nil {
		return nil, err
	}
	if doc.IsFinished {
		return nil, errs.NewValidation("isFinished", "game is already finished")
	}

	doc.IsFinished = true
	return g.withDoc(doc)
}

// withDoc re-encodes the typed doc into the backing JSON representation so
// the map payload stays the single source of truth.
func (g *GameEntity) withDoc(doc gameDoc) (*GameEntity, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}

	next := g.base
	next.data = data
	return &GameEntity{base: next}, nil
}

func decodeGameDoc(data any) (gameDoc, error) {
	doc := gameDoc{}

	payload, ok := data.(map[string]any)
	if !ok {
		return doc, errs.NewValidation("data", "game data must be a JSON object")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return doc, errs.NewValidation("data", "game data is not serializable: %v", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, errs.NewValidation("data", "game data is malformed: %v", err)
	}

	if length := utf8.RuneCountInString(doc.Type); length < gameTypeMinLength || length > gameTypeMaxLength {
		return doc, errs.NewValidation("type", "type must be %d to %d characters, got %d", gameTypeMinLength, gameTypeMaxLength, length)
	}
	if len(doc.UsersIDs) < gameUsersMin || len(doc.UsersIDs) > gameUsersMax {
		return doc, errs.NewValidation("usersIds", "usersIds must contain %d to %d entries, got %d", gameUsersMin, gameUsersMax, len(doc.UsersIDs))
	}
	seen := make(map[string]struct{}, len(doc.UsersIDs))
	for _, userID := range doc.UsersIDs {
		if _, dup := seen[userID]; dup {
			return doc, errs.NewValidation("usersIds", "usersIds contains duplicate '%s'", userID)
		}
		seen[userID] = struct{}{}
	}
	seenRounds := make(map[string]struct{}, len(doc.Rounds))
	for _, round := range doc.Rounds {
		if _, dup := seenRounds[round.ID]; dup {
			return doc, errs.NewValidation("rounds", "rounds contains duplicate '%s'", round.ID)
		}
		seenRounds[round.ID] = struct{}{}
		if err := validateMoves(round.Moves); err != nil {
			return doc, err
		}
	}

	return doc, nil
}

func validateMoves(moves []Move) error {
	for _, move := range moves {
		if math.IsNaN(move.Value) || math.IsInf(move.Value, 0) {
			return errs.NewValidation("value", "move '%s' value must be a finite number", move.ID)
		}
	}
	return nil
}
