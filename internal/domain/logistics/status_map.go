package logistics

import (
	"fmt"

	"github.com/marketplace/backend/internal/domain/shared"
)

// carrierStatusCodes maps the carrier's webhook status codes onto the
// internal shipment state graph. The table is fixed per carrier contract;
// an unknown code is rejected rather than guessed at.
var carrierStatusCodes = map[string]ShipmentStatus{
	"100": ShipmentStatusInitiated,
	"200": ShipmentStatusPickedUp,
	"300": ShipmentStatusInTransit,
	"350": ShipmentStatusAtPickupPoint,
	"400": ShipmentStatusOutForDelivery,
	"500": ShipmentStatusDelivered,
	"900": ShipmentStatusFailed,
}

// StatusForCarrierCode translates a carrier status code into a ShipmentStatus
func StatusForCarrierCode(code string) (ShipmentStatus, error) {
	status, ok := carrierStatusCodes[code]
	if !ok {
		return "", shared.NewDomainError("UNKNOWN_STATUS_CODE", fmt.Sprintf("Unrecognized carrier status code %q", code))
	}
	return status, nil
}
