package api

import (
	"context"

	"chatflow/client/internal/models"
)

const myRoomsQuery = `query MyRooms {
  myRooms {
    id
    name
    type
    participants {
      id
      firstName
      lastName
      email
    }
  }
}`

const myChannelsQuery = `query MyChannels {
  myChannels {
    id
    name
    type
    adminId
    isPrivate
    description
    participants {
      id
      firstName
      lastName
      email
    }
  }
}`

const myDirectMessagesQuery = `query MyDirectMessages {
  myDirectMessages {
    id
    name
    type
    adminId
    participants {
      id
      firstName
      lastName
      email
    }
  }
}`

const discoverChannelsQuery = `query DiscoverChannels {
  discoverChannels {
    id
    name
    description
    isPrivate
    adminId
  }
}`

const roomMessagesQuery = `query RoomMessages($roomId: Float!) {
  roomMessages(roomId: $roomId) {
    id
    content
    senderId
    roomId
    sender {
      id
      firstName
      lastName
    }
    createdAt
  }
}`

const createRoomMutation = `mutation CreateRoom($createRoomInput: CreateRoomDto!) {
  createRoom(createRoomInput: $createRoomInput) {
    id
    name
    type
    adminId
    isPrivate
    description
  }
}`

const createDirectMessageMutation = `mutation CreateDirectMessage($otherUserId: Float!) {
  createDirectMessage(otherUserId: $otherUserId) {
    id
    name
    type
    participants {
      id
      firstName
      lastName
      email
    }
  }
}`

const sendMessageMutation = `mutation SendMessage($sendMessageInput: SendMessageDto!) {
  sendMessage(sendMessageInput: $sendMessageInput) {
    id
    content
    senderId
    roomId
    createdAt
    sender {
      id
      firstName
      lastName
      email
    }
  }
}`

const requestJoinMutation = `mutation RequestJoin($requestJoinInput: RequestJoinInput!) {
  requestToJoin(requestJoinInput: $requestJoinInput) {
    id
    roomId
    requesterId
    status
    createdAt
  }
}`

const approveJoinMutation = `mutation ApproveJoin($approveJoinInput: ApproveJoinInput!) {
  approveJoin(approveJoinInput: $approveJoinInput) {
    id
    roomId
    requesterId
    status
    createdAt
  }
}`

const rejectJoinMutation = `mutation RejectJoin($rejectJoinInput: RejectJoinInput!) {
  rejectJoin(rejectJoinInput: $rejectJoinInput) {
    id
    roomId
    requesterId
    status
    createdAt
  }
}`

const deleteRoomsMutation = `mutation DeleteRooms($deleteRoomsInput: DeleteRoomsInput!) {
  deleteRooms(deleteRoomsInput: $deleteRoomsInput)
}`

// NewRoom is the createRoom input.
type NewRoom struct {
	Name           string
	Description    string
	IsPrivate      bool
	ParticipantIDs []models.ID
}

// MyRooms lists every room the caller belongs to.
func (c *Client) MyRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := c.do(ctx, "MyRooms", myRoomsQuery, nil, "myRooms", &rooms)
	return rooms, err
}

// MyChannels lists the caller's channels.
func (c *Client) MyChannels(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := c.do(ctx, "MyChannels", myChannelsQuery, nil, "myChannels", &rooms)
	return rooms, err
}

// MyDirectMessages lists the caller's DMs.
func (c *Client) MyDirectMessages(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := c.do(ctx, "MyDirectMessages", myDirectMessagesQuery, nil, "myDirectMessages", &rooms)
	return rooms, err
}

// DiscoverChannels lists channels the caller can join.
func (c *Client) DiscoverChannels(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := c.do(ctx, "DiscoverChannels", discoverChannelsQuery, nil, "discoverChannels", &rooms)
	return rooms, err
}

// RoomMessages returns a room's history, oldest first.
func (c *Client) RoomMessages(ctx context.Context, roomID models.ID) ([]models.Message, error) {
	id, err := number("RoomMessages", roomID)
	if err != nil {
		return nil, err
	}
	var msgs []models.Message
	if err := c.do(ctx, "RoomMessages", roomMessagesQuery, map[string]any{"roomId": id}, "roomMessages", &msgs); err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].RoomID.IsZero() {
			msgs[i].RoomID = roomID
		}
		if msgs[i].Sender.ID.IsZero() {
			msgs[i].Sender.ID = msgs[i].SenderID
		}
	}
	return msgs, nil
}

// SendMessage posts content to a room.
func (c *Client) SendMessage(ctx context.Context, roomID models.ID, content string) (models.Message, error) {
	id, err := number("SendMessage", roomID)
	if err != nil {
		return models.Message{}, err
	}
	var msg models.Message
	vars := map[string]any{"sendMessageInput": map[string]any{"content": content, "roomId": id}}
	err = c.do(ctx, "SendMessage", sendMessageMutation, vars, "sendMessage", &msg)
	return msg, err
}

// CreateRoom creates a channel.
func (c *Client) CreateRoom(ctx context.Context, in NewRoom) (models.Room, error) {
	ids, err := numbers("CreateRoom", in.ParticipantIDs)
	if err != nil {
		return models.Room{}, err
	}
	input := map[string]any{"name": in.Name, "participantIds": ids}
	if in.Description != "" {
		input["description"] = in.Description
	}
	if in.IsPrivate {
		input["isPrivate"] = true
	}
	var room models.Room
	err = c.do(ctx, "CreateRoom", createRoomMutation, map[string]any{"createRoomInput": input}, "createRoom", &room)
	return room, err
}

// CreateDirectMessage opens, or returns the existing, DM with another user.
func (c *Client) CreateDirectMessage(ctx context.Context, otherUserID models.ID) (models.Room, error) {
	id, err := number("CreateDirectMessage", otherUserID)
	if err != nil {
		return models.Room{}, err
	}
	var room models.Room
	err = c.do(ctx, "CreateDirectMessage", createDirectMessageMutation, map[string]any{"otherUserId": id}, "createDirectMessage", &room)
	return room, err
}

// RequestJoin asks a private channel's admin for access.
func (c *Client) RequestJoin(ctx context.Context, roomID models.ID) (models.JoinRequest, error) {
	id, err := number("RequestJoin", roomID)
	if err != nil {
		return models.JoinRequest{}, err
	}
	var jr models.JoinRequest
	vars := map[string]any{"requestJoinInput": map[string]any{"roomId": id}}
	err = c.do(ctx, "RequestJoin", requestJoinMutation, vars, "requestToJoin", &jr)
	return jr, err
}

// ApproveJoin accepts a pending join request.
func (c *Client) ApproveJoin(ctx context.Context, requestID models.ID) (models.JoinRequest, error) {
	return c.decideJoin(ctx, "ApproveJoin", approveJoinMutation, "approveJoinInput", "approveJoin", requestID)
}

// RejectJoin declines a pending join request.
func (c *Client) RejectJoin(ctx context.Context, requestID models.ID) (models.JoinRequest, error) {
	return c.decideJoin(ctx, "RejectJoin", rejectJoinMutation, "rejectJoinInput", "rejectJoin", requestID)
}

func (c *Client) decideJoin(ctx context.Context, op, query, input, field string, requestID models.ID) (models.JoinRequest, error) {
	id, err := number(op, requestID)
	if err != nil {
		return models.JoinRequest{}, err
	}
	var jr models.JoinRequest
	err = c.do(ctx, op, query, map[string]any{input: map[string]any{"requestId": id}}, field, &jr)
	return jr, err
}

// DeleteRooms removes rooms in bulk (admin only).
func (c *Client) DeleteRooms(ctx context.Context, roomIDs []models.ID) (bool, error) {
	ids, err := numbers("DeleteRooms", roomIDs)
	if err != nil {
		return false, err
	}
	var ok bool
	vars := map[string]any{"deleteRoomsInput": map[string]any{"roomIds": ids}}
	err = c.do(ctx, "DeleteRooms", deleteRoomsMutation, vars, "deleteRooms", &ok)
	return ok, err
}
