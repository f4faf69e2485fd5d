// Package sos contains the core domain types of the emergency alert flow.
//
// It defines Coordinate (where the user is), Contact (who must be told),
// DeliveryOutcome and AlertReport (what happened) together with the error
// taxonomy shared by the dispatcher, the location resolver and the transports.
package sos
