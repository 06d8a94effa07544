package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"sketchbook/internal/game"
)

const (
	roomPrefix = "cache_room"
	userPrefix = "cache_user"
	gamePrefix = "cache_game"
)

type TTLs struct {
	Room time.Duration
	User time.Duration
	Game time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{
		Room: 24 * time.Hour,
		User: 24 * time.Hour,
		Game: 2 * time.Hour,
	}
}

// Repository maps rooms, users and games onto a Store.
type Repository struct {
	store Store
	ttls  TTLs
}

var _ game.Entities = (*Repository)(nil)

func NewRepository(store Store, ttls TTLs) *Repository {
	return &Repository{store: store, ttls: ttls}
}

func key(prefix, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

func (r *Repository) SaveRoom(ctx context.Context, room *game.Room) error {
	attrs, err := encodeRoom(room)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, key(roomPrefix, room.ID), attrs, r.ttls.Room)
}

func (r *Repository) Room(ctx context.Context, id string) (*game.Room, error) {
	attrs, ok, err := r.store.Get(ctx, key(roomPrefix, id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return decodeRoom(id, attrs)
}

func (r *Repository) DeleteRoom(ctx context.Context, id string) error {
	return r.store.Delete(ctx, key(roomPrefix, id))
}

func (r *Repository) SaveUser(ctx context.Context, user *game.User) error {
	return r.store.Put(ctx, key(userPrefix, user.ID), encodeUser(user), r.ttls.User)
}

func (r *Repository) User(ctx context.Context, id string) (*game.User, error) {
	attrs, ok, err := r.store.Get(ctx, key(userPrefix, id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, game.ErrUserNotFound
	}
	return decodeUser(id, attrs)
}

func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	return r.store.Delete(ctx, key(userPrefix, id))
}

func (r *Repository) SaveGame(ctx context.Context, g *game.Game) error {
	attrs, err := encodeGame(g)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, key(gamePrefix, g.RoomID), attrs, r.ttls.Game)
}

func (r *Repository) Game(ctx context.Context, roomID string) (*game.Game, error) {
	attrs, ok, err := r.store.Get(ctx, key(gamePrefix, roomID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, game.ErrGameNotFound
	}
	return decodeGame(roomID, attrs)
}

func (r *Repository) DeleteGame(ctx context.Context, roomID string) error {
	return r.store.Delete(ctx, key(gamePrefix, roomID))
}

func encodeRoom(room *game.Room) (map[string]string, error) {
	order := room.JoinOrder
	if order == nil {
		order = []game.Member{}
	}
	joinOrder, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"member_limit":   strconv.Itoa(room.MemberLimit),
		"total_rounds":   strconv.Itoa(room.TotalRounds),
		"entering_count": strconv.Itoa(room.EnteringCount()),
		"join_order":     string(joinOrder),
	}, nil
}

func decodeRoom(id string, attrs map[string]string) (*game.Room, error) {
	d := decoder{attrs: attrs}
	room := game.NewRoom(id, d.integer("member_limit"), d.integer("total_rounds"))
	d.jsonValue("join_order", &room.JoinOrder)
	if d.err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, d.err)
	}
	return room, nil
}

func encodeUser(user *game.User) map[string]string {
	attrs := map[string]string{
		"room_id": user.RoomID,
		"name":    user.Name,
	}
	if user.AssignedCardNum != nil {
		attrs["assigned_card_num"] = strconv.Itoa(*user.AssignedCardNum)
	}
	if user.OwnedSketchBookID != nil {
		attrs["owned_sketch_book_id"] = strconv.FormatUint(uint64(*user.OwnedSketchBookID), 10)
	}
	if user.CurrentSketchBookID != nil {
		attrs["current_sketch_book_id"] = strconv.FormatUint(uint64(*user.CurrentSketchBookID), 10)
	}
	return attrs
}

func decodeUser(id string, attrs map[string]string) (*game.User, error) {
	d := decoder{attrs: attrs}
	user := &game.User{
		ID:                  id,
		RoomID:              attrs["room_id"],
		Name:                attrs["name"],
		AssignedCardNum:     d.optionalInt("assigned_card_num"),
		OwnedSketchBookID:   d.optionalUint("owned_sketch_book_id"),
		CurrentSketchBookID: d.optionalUint("current_sketch_book_id"),
	}
	if d.err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, d.err)
	}
	return user, nil
}

func encodeGame(g *game.Game) (map[string]string, error) {
	holders := g.HolderMap
	if holders == nil {
		holders = map[uint]string{}
	}
	holderMap, err := json.Marshal(holders)
	if err != nil {
		return nil, err
	}
	attrs := map[string]string{
		"status":              string(g.Status),
		"current_round":       strconv.Itoa(g.CurrentRound),
		"current_turn":        strconv.Itoa(g.CurrentTurn),
		"turn_type":           string(g.TurnType),
		"holder_map":          string(holderMap),
		"awaiting_free_input": strconv.FormatBool(g.AwaitingFreeInput),
	}
	if !g.TurnStartedAt.IsZero() {
		attrs["turn_started_at"] = g.TurnStartedAt.UTC().Format(time.RFC3339Nano)
	}
	if g.Rolled() {
		attrs["dice_result"] = strconv.Itoa(g.DiceResult)
	}
	if g.DiceRolledBy != "" {
		attrs["dice_rolled_by"] = g.DiceRolledBy
	}
	if g.FreeInputGenre != "" {
		attrs["free_input_genre"] = g.FreeInputGenre
	}
	if len(g.FreeInputPending) > 0 {
		pending, err := json.Marshal(g.FreeInputPending)
		if err != nil {
			return nil, err
		}
		attrs["free_input_pending"] = string(pending)
	}
	if len(g.CustomPrompts) > 0 {
		customs, err := json.Marshal(g.CustomPrompts)
		if err != nil {
			return nil, err
		}
		attrs["custom_prompts"] = string(customs)
	}
	return attrs, nil
}

func decodeGame(roomID string, attrs map[string]string) (*game.Game, error) {
	d := decoder{attrs: attrs}
	g := &game.Game{
		RoomID:         roomID,
		Status:         game.Status(attrs["status"]),
		CurrentRound:   d.integer("current_round"),
		CurrentTurn:    d.integer("current_turn"),
		TurnType:       game.TurnType(attrs["turn_type"]),
		DiceRolledBy:   attrs["dice_rolled_by"],
		FreeInputGenre: attrs["free_input_genre"],
	}
	if face := d.optionalInt("dice_result"); face != nil {
		g.DiceResult = *face
	}
	g.AwaitingFreeInput = attrs["awaiting_free_input"] == "true"
	if raw := attrs["turn_started_at"]; raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil && d.err == nil {
			d.err = err
		}
		g.TurnStartedAt = at
	}
	g.HolderMap = make(map[uint]string)
	d.jsonValue("holder_map", &g.HolderMap)
	d.jsonValue("free_input_pending", &g.FreeInputPending)
	d.jsonValue("custom_prompts", &g.CustomPrompts)
	if d.err != nil {
		return nil, fmt.Errorf("decode game %s: %w", roomID, d.err)
	}
	return g, nil
}

// decoder keeps the first parse error.
type decoder struct {
	attrs map[string]string
	err   error
}

func (d *decoder) integer(name string) int {
	raw, ok := d.attrs[name]
	if !ok || raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("%s: %w", name, err)
	}
	return v
}

func (d *decoder) optionalInt(name string) *int {
	if d.attrs[name] == "" {
		return nil
	}
	v := d.integer(name)
	return &v
}

func (d *decoder) optionalUint(name string) *uint {
	raw := d.attrs[name]
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("%s: %w", name, err)
	}
	u := uint(v)
	return &u
}

func (d *decoder) jsonValue(name string, dst any) {
	raw := d.attrs[name]
	if raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil && d.err == nil {
		d.err = fmt.Errorf("%s: %w", name, err)
	}
}
