// Package campaign implements outreach campaign lifecycle management.
//
// The service layer contains the business logic for creating campaigns,
// reading their generated step sequences, and the guarded ai_status
// transitions that serialize step generation. It depends on repository
// interfaces defined in this package and should never import from api/.
//
// Repository implementations live in repository/postgres/.
package campaign
