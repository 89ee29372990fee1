// Package knocki provides an HTTP client for the Knocki cloud API.
//
// The client authenticates a user, links the account for Home Assistant
// delivery, and lists the triggers configured for the account. It also
// holds the shared data model (triggers and the events the vendor pushes
// over the event stream) and the codec that parses inbound event frames.
//
// Basic usage:
//
//	client := knocki.New(knocki.Config{})
//	token, err := client.Login(ctx, "user@example.com", "hunter2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	triggers, err := client.Triggers(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, trigger := range triggers {
//	    fmt.Printf("%s: %s\n", trigger.DeviceID, trigger.Details.Name)
//	}
//
// The bearer token returned by Login is stored on the client for
// subsequent calls and also authenticates the event stream; see the
// stream package.
//
// API failures are reported through three error types: *AuthError for
// rejected credentials, *ConnectionError for transport failures and
// unexpected responses, and *DecodeError for malformed event frames.
// Requests are single-attempt and fail fast on timeout or a non-2xx
// status.
package knocki
