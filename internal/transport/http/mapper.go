package http

import (
	"encoding/json"

	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-lobby/internal/core"
	"github.com/vovakirdan/wirechat-lobby/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeChatMessage:
		var msg proto.ChatMessageData
		if len(inbound.Data) == 0 {
			return core.Command{}, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "body is required"}
		}
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return core.Command{}, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid chat_message payload"}
		}
		return core.Command{Kind: core.CommandChatMessage, Body: msg.Body}, nil
	case proto.InboundTypeTypingStart:
		return core.Command{Kind: core.CommandTypingStart}, nil
	case proto.InboundTypeTypingStop:
		return core.Command{Kind: core.CommandTypingStop}, nil
	case proto.InboundTypeAdminClear:
		return core.Command{Kind: core.CommandAdminClear}, nil
	default:
		return core.Command{}, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown message type"}
	}
}

func eventMessage(m core.Message) proto.EventMessage {
	return proto.EventMessage{Author: m.Author, Body: m.Body, SentAt: m.SentAt}
}

func eventMessages(messages []core.Message) []proto.EventMessage {
	out := lo.Map(messages, func(m core.Message, _ int) proto.EventMessage { return eventMessage(m) })
	if out == nil {
		out = []proto.EventMessage{}
	}
	return out
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventActiveCount:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventActiveCount,
			Data:  proto.EventActiveCountData{Count: event.Count},
		}
	case core.EventHistory:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventHistory,
			Data:  proto.EventHistoryData{Messages: eventMessages(event.Messages)},
		}
	case core.EventChatMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventChatMessage,
			Data:  eventMessage(event.Message),
		}
	case core.EventTypingChanged:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTypingChanged,
			Data:  proto.EventTypingChangedData{User: event.User, Typing: event.Typing},
		}
	case core.EventClearedAll:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventClearedAll}
	case core.EventForcedDisconnect:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventForcedDisconnect,
			Data:  proto.EventForcedDisconnectData{Reason: event.Reason},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
