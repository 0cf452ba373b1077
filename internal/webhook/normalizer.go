// Package webhook normalizes platform webhook payloads to the internal
// IncomingMessage shape. Signature verification is intentionally out of
// scope here.
package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/jonesrussell/discount-agent/internal/domain"
)

const unknownUser = "unknown_user"

// Normalize parses a raw webhook body for the given platform.
func Normalize(platform domain.Platform, body []byte) (*domain.IncomingMessage, error) {
	switch platform {
	case domain.PlatformInstagram:
		return normalizeInstagram(body)
	case domain.PlatformTikTok:
		return normalizeTikTok(body)
	case domain.PlatformWhatsApp:
		return normalizeWhatsApp(body)
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
}

// instagramPayload is the Meta messaging webhook shape (simplified).
type instagramPayload struct {
	Entry []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message struct {
				MID  string `json:"mid"`
				Text string `json:"text"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
	fallbackPayload
}

type tiktokPayload struct {
	Messages []struct {
		ID     string `json:"id"`
		Text   string `json:"text"`
		Sender struct {
			ID string `json:"id"`
		} `json:"sender"`
	} `json:"messages"`
	fallbackPayload
}

type whatsappPayload struct {
	Contacts []struct {
		WaID string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID   string `json:"id"`
		Text struct {
			Body string `json:"body"`
		} `json:"text"`
	} `json:"messages"`
	fallbackPayload
}

// fallbackPayload covers the flat test/demo shape every platform accepts.
type fallbackPayload struct {
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
}

func normalizeInstagram(body []byte) (*domain.IncomingMessage, error) {
	var p instagramPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parse instagram payload: %w", err)
	}
	msg := &domain.IncomingMessage{Platform: domain.PlatformInstagram}
	if len(p.Entry) > 0 && len(p.Entry[0].Messaging) > 0 {
		m := p.Entry[0].Messaging[0]
		msg.UserID = m.Sender.ID
		msg.Text = m.Message.Text
		msg.MessageID = m.Message.MID
	}
	applyFallback(msg, p.fallbackPayload)
	return msg, nil
}

func normalizeTikTok(body []byte) (*domain.IncomingMessage, error) {
	var p tiktokPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parse tiktok payload: %w", err)
	}
	msg := &domain.IncomingMessage{Platform: domain.PlatformTikTok}
	if len(p.Messages) > 0 {
		m := p.Messages[0]
		msg.UserID = m.Sender.ID
		msg.Text = m.Text
		msg.MessageID = m.ID
	}
	applyFallback(msg, p.fallbackPayload)
	return msg, nil
}

func normalizeWhatsApp(body []byte) (*domain.IncomingMessage, error) {
	var p whatsappPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parse whatsapp payload: %w", err)
	}
	msg := &domain.IncomingMessage{Platform: domain.PlatformWhatsApp}
	if len(p.Contacts) > 0 {
		msg.UserID = p.Contacts[0].WaID
	}
	if len(p.Messages) > 0 {
		msg.Text = p.Messages[0].Text.Body
		msg.MessageID = p.Messages[0].ID
	}
	applyFallback(msg, p.fallbackPayload)
	return msg, nil
}

func applyFallback(msg *domain.IncomingMessage, fb fallbackPayload) {
	if msg.UserID == "" {
		msg.UserID = fb.UserID
	}
	if msg.UserID == "" {
		msg.UserID = unknownUser
	}
	if msg.Text == "" {
		msg.Text = fb.Text
	}
	if msg.MessageID == "" {
		msg.MessageID = fb.MessageID
	}
}
