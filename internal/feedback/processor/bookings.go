package processor

import "errors"

// ErrBookingNotFound is returned when a feedback call is requested for a
// booking the directory does not know.
var ErrBookingNotFound = errors.New("booking not found")

// Booking carries the stay details woven into the agent's opening script.
type Booking struct {
	BookingID   string
	UserID      string
	PhoneNumber string
	GuestName   string
	CheckIn     string
	CheckOut    string
	RoomNumber  string
	HostelName  string
}

// mockBookings stands in for the property-management system until the real
// integration lands.
var mockBookings = map[string]Booking{
	"BK-2024-001": {
		BookingID:   "BK-2024-001",
		UserID:      "USER-123",
		PhoneNumber: "+91-7905324606",
		GuestName:   "Rohil Pal",
		CheckIn:     "2024-01-15",
		CheckOut:    "2024-01-20",
		RoomNumber:  "204",
		HostelName:  "City Center Hostel",
	},
	"BK-2024-002": {
		BookingID:   "BK-2024-002",
		UserID:      "USER-456",
		PhoneNumber: "+9876543210",
		GuestName:   "Jane Smith",
		CheckIn:     "2024-01-18",
		CheckOut:    "2024-01-22",
		RoomNumber:  "305",
		HostelName:  "City Center Hostel",
	},
}

func lookupBooking(bookingID string) (Booking, error) {
	booking, ok := mockBookings[bookingID]
	if !ok {
		return Booking{}, ErrBookingNotFound
	}
	return booking, nil
}
