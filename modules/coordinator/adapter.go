package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	chat "github.com/example/chat-rooms-demo/domain/chat"
)

// ListRoomsRequest asks for the current room directory.
type ListRoomsRequest struct{}

// RoomInfo is one directory entry with its live member count.
type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// ListRoomsResponse carries the room directory snapshot.
type ListRoomsResponse struct {
	Rooms []RoomInfo `json:"rooms"`
}

// RoomHistoryRequest asks for a room's recent messages.
type RoomHistoryRequest struct {
	Room  string `json:"room"`
	Limit int    `json:"limit"`
}

// RoomHistoryResponse carries recent messages in chronological order.
type RoomHistoryResponse struct {
	Messages []chat.Message `json:"messages"`
}

// RegisterServices implements mono.ServiceProviderModule, exposing the
// directory and history reads to other modules over the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		"list-rooms",
		json.Unmarshal,
		json.Marshal,
		m.handleListRooms,
	); err != nil {
		return fmt.Errorf("failed to register list-rooms service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		"room-history",
		json.Unmarshal,
		json.Marshal,
		m.handleRoomHistory,
	); err != nil {
		return fmt.Errorf("failed to register room-history service: %w", err)
	}

	return nil
}

func (m *Module) handleListRooms(ctx context.Context, req ListRoomsRequest, msg *mono.Msg) (ListRoomsResponse, error) {
	if m.coordinator == nil {
		return ListRoomsResponse{}, errors.New("coordinator not started")
	}
	rooms := m.coordinator.ActiveRooms()
	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, RoomInfo{
			Name:    room,
			Members: m.coordinator.MemberCount(room),
		})
	}
	return ListRoomsResponse{Rooms: infos}, nil
}

func (m *Module) handleRoomHistory(ctx context.Context, req RoomHistoryRequest, msg *mono.Msg) (RoomHistoryResponse, error) {
	if m.coordinator == nil {
		return RoomHistoryResponse{}, errors.New("coordinator not started")
	}
	messages, err := m.coordinator.History(ctx, req.Room, req.Limit)
	if err != nil {
		return RoomHistoryResponse{}, err
	}
	return RoomHistoryResponse{Messages: messages}, nil
}

// DirectoryPort is the read surface other modules use to query the room
// directory without importing the coordinator's internals.
type DirectoryPort interface {
	ListRooms(ctx context.Context) ([]RoomInfo, error)
	RoomHistory(ctx context.Context, room string, limit int) ([]chat.Message, error)
}

// DirectoryAdapter implements DirectoryPort over the service container.
type DirectoryAdapter struct {
	container mono.ServiceContainer
}

// NewDirectoryAdapter creates an adapter bound to the coordinator's
// service container.
func NewDirectoryAdapter(container mono.ServiceContainer) *DirectoryAdapter {
	return &DirectoryAdapter{container: container}
}

var _ DirectoryPort = (*DirectoryAdapter)(nil)

// ListRooms returns the current room directory with member counts.
func (a *DirectoryAdapter) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"list-rooms",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("list-rooms request failed: %w", err)
	}

	return resp.Rooms, nil
}

// RoomHistory returns up to limit recent messages for room.
func (a *DirectoryAdapter) RoomHistory(ctx context.Context, room string, limit int) ([]chat.Message, error) {
	req := RoomHistoryRequest{Room: room, Limit: limit}
	var resp RoomHistoryResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"room-history",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("room-history request failed: %w", err)
	}

	return resp.Messages, nil
}
