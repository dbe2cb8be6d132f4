package handlers

import "net/http"

type Routes struct {
	Availability *AvailabilityHandler
	Sessions     *SessionHandler
	Bookings     *BookingHandler
	Webhooks     *WebhookHandler
}

func (rt Routes) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/dates", rt.Availability.Dates)
	mux.HandleFunc("/api/v1/public/slots", rt.Availability.Slots)
	mux.HandleFunc("/api/v1/public/fee", rt.Availability.Fee)

	mux.HandleFunc("/api/v1/sessions", rt.Sessions.Collection)
	mux.HandleFunc("/api/v1/sessions/date", rt.Sessions.SelectDate)
	mux.HandleFunc("/api/v1/sessions/time", rt.Sessions.SelectTime)
	mux.HandleFunc("/api/v1/sessions/confirm", rt.Sessions.Confirm)
	mux.HandleFunc("/api/v1/sessions/cancel", rt.Sessions.Cancel)

	mux.HandleFunc("/api/v1/bookings", rt.Bookings.Collection)
	mux.HandleFunc("/api/v1/bookings/cancel", rt.Bookings.Cancel)

	mux.HandleFunc("/api/v1/payments/stripe/webhook", rt.Webhooks.Handle)
}
