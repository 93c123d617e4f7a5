package entity

// TransportMode is how a travel segment was covered
type TransportMode string

const (
	TransportSelfDriven        TransportMode = "self_driven_vehicle"
	TransportSelfDrivenTrailer TransportMode = "self_driven_vehicle_trailer"
	TransportPublicTransit     TransportMode = "public_transit"
	TransportOnFoot            TransportMode = "on_foot"
	TransportBicycle           TransportMode = "bicycle"
)

var validTransportModes = map[TransportMode]bool{
	TransportSelfDriven:        true,
	TransportSelfDrivenTrailer: true,
	TransportPublicTransit:     true,
	TransportOnFoot:            true,
	TransportBicycle:           true,
}

// IsValid returns true for a known transport mode
func (m TransportMode) IsValid() bool {
	return validTransportModes[m]
}

// IsVehicle returns true for modes reimbursed per kilometre
func (m TransportMode) IsVehicle() bool {
	return m == TransportSelfDriven || m == TransportSelfDrivenTrailer
}

// History action labels
const (
	ActionCreated      = "CREATED"
	ActionPartAUpdated = "PART_A_UPDATED"
	ActionPartBUpdated = "PART_B_UPDATED"
	ActionFinalFailure = "SUBMISSION_FINAL_FAILURE"
	ActionSendAborted  = "SEND_ABORTED"
)
