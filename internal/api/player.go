package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// AuthCookie is the cookie carrying the player identity token.
const AuthCookie = "player_auth_id"

// ErrNoIdentity is returned when the server issued no identity for a new player.
var ErrNoIdentity = errors.New("server did not issue a player identity")

// PlayerNameRequest is the body of the player endpoints.
type PlayerNameRequest struct {
	PlayerName string `json:"playerName"`
}

// Player is a provisioned player identity.
type Player struct {
	Name   string // Display name confirmed by the server
	AuthID string // Opaque identity token
}

// EnsurePlayer creates a player named name unless authID already identifies
// one. The returned AuthID is the newly issued token, or authID when the
// server kept the existing player.
func (c *Client) EnsurePlayer(ctx context.Context, name, authID string) (Player, error) {
	resp, err := c.put(ctx, "/player/ensure", PlayerNameRequest{PlayerName: name}, authID)
	if err != nil {
		return Player{}, fmt.Errorf("ensure player: %w", err)
	}

	var out PlayerNameRequest
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return Player{}, fmt.Errorf("unmarshal response: %w", err)
	}

	player := Player{Name: out.PlayerName, AuthID: authID}
	if issued, ok := resp.cookie(AuthCookie); ok {
		player.AuthID = issued
	}
	if player.AuthID == "" {
		return Player{}, ErrNoIdentity
	}
	if player.Name == "" {
		player.Name = name
	}

	c.logger.Debug("player ensured", "name", player.Name, "issued", player.AuthID != authID)
	return player, nil
}

// SetName renames the player identified by authID.
func (c *Client) SetName(ctx context.Context, authID, name string) error {
	if _, err := c.put(ctx, "/player/set-name", PlayerNameRequest{PlayerName: name}, authID); err != nil {
		return fmt.Errorf("set name: %w", err)
	}
	return nil
}
