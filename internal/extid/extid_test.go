package extid

import "testing"

type room int

const (
	roomBedroom room = iota
	roomKitchen
)

var roomDecoder = Decoder[room]{
	TypeName: "room",
	Decode: func(v string) (room, bool) {
		switch v {
		case "bedroom":
			return roomBedroom, true
		case "kitchen":
			return roomKitchen, true
		default:
			return 0, false
		}
	},
}

func TestDecoderRoundTrip(t *testing.T) {
	id := New("room", "bedroom")
	got, err := roomDecoder.TryFrom(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != roomBedroom {
		t.Fatalf("got %v", got)
	}
}

func TestDecoderWrongType(t *testing.T) {
	_, err := roomDecoder.TryFrom(New("thermostat", "bedroom"))
	if err == nil {
		t.Fatal("expected error for mismatched type")
	}
}

func TestDecoderUnknownVariant(t *testing.T) {
	_, err := roomDecoder.TryFrom(New("room", "attic"))
	if err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestNestedSplit(t *testing.T) {
	outer, rest := SplitNested(Nested("radiator", "bedroom"))
	if outer != "radiator" || rest != "bedroom" {
		t.Fatalf("got outer=%q rest=%q", outer, rest)
	}
	outer, rest = SplitNested("flat")
	if outer != "flat" || rest != "" {
		t.Fatalf("got outer=%q rest=%q", outer, rest)
	}
}
