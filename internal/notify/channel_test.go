package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/askarbek/ride-driver-agent/internal/domain/models"
	"github.com/askarbek/ride-driver-agent/internal/domain/types"
	"github.com/askarbek/ride-driver-agent/pkg/logger"
)

type recordingSink struct {
	offers       []models.OfferMessage
	interactions []models.InteractionMessage
}

func (s *recordingSink) SubmitOffer(offer models.OfferMessage) {
	s.offers = append(s.offers, offer)
}

func (s *recordingSink) SubmitInteraction(msg models.InteractionMessage) {
	s.interactions = append(s.interactions, msg)
}

func TestDispatch_ValidOffer(t *testing.T) {
	raw := []byte(`{
		"bookingId": "b1",
		"passengerId": "p1",
		"from": {"latitude": 43.238, "longitude": 76.889, "address": "Abay Ave 1"},
		"to": {"latitude": 43.222, "longitude": 76.851, "address": "Dostyk Ave 5"}
	}`)

	sink := &recordingSink{}
	if err := dispatch(context.Background(), raw, sink, logger.InitLogger("test", logger.LevelError)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.offers) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(sink.offers))
	}
	offer := sink.offers[0]
	if offer.BookingID != "b1" || offer.PassengerID != "p1" {
		t.Errorf("unexpected offer: %+v", offer)
	}
	if offer.From.Address != "Abay Ave 1" || offer.To.Latitude != 43.222 {
		t.Errorf("unexpected trip endpoints: %+v", offer)
	}
}

func TestDispatch_MalformedJSON(t *testing.T) {
	sink := &recordingSink{}
	err := dispatch(context.Background(), []byte(`{not json`), sink, logger.InitLogger("test", logger.LevelError))
	if !errors.Is(err, types.ErrMalformedPayload) {
		t.Fatalf("got %v, want ErrMalformedPayload", err)
	}
	if len(sink.offers) != 0 {
		t.Errorf("malformed payload must not produce an offer")
	}
}

func TestDispatch_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no booking id", `{"passengerId":"p1","from":{"latitude":1,"longitude":1},"to":{"latitude":1,"longitude":1}}`},
		{"no passenger id", `{"bookingId":"b1","from":{"latitude":1,"longitude":1},"to":{"latitude":1,"longitude":1}}`},
		{"latitude out of range", `{"bookingId":"b1","passengerId":"p1","from":{"latitude":120,"longitude":1},"to":{"latitude":1,"longitude":1}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sink := &recordingSink{}
			err := dispatch(context.Background(), []byte(tc.raw), sink, logger.InitLogger("test", logger.LevelError))
			if !errors.Is(err, types.ErrMalformedPayload) {
				t.Fatalf("got %v, want ErrMalformedPayload", err)
			}
			if len(sink.offers) != 0 {
				t.Errorf("invalid payload must not produce an offer")
			}
		})
	}
}

func TestDispatch_Interaction(t *testing.T) {
	sink := &recordingSink{}
	raw := []byte(`{"type":"interaction","kind":"notification_tapped"}`)

	if err := dispatch(context.Background(), raw, sink, logger.InitLogger("test", logger.LevelError)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.interactions) != 1 || sink.interactions[0].Kind != "notification_tapped" {
		t.Fatalf("expected one interaction event, got %+v", sink.interactions)
	}
	if len(sink.offers) != 0 {
		t.Errorf("interaction must not produce an offer")
	}
}

func TestDispatch_UnknownTypeIgnored(t *testing.T) {
	sink := &recordingSink{}
	raw := []byte(`{"type":"promo","text":"drive more"}`)

	if err := dispatch(context.Background(), raw, sink, logger.InitLogger("test", logger.LevelError)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.offers) != 0 || len(sink.interactions) != 0 {
		t.Errorf("unknown message type must be ignored")
	}
}
