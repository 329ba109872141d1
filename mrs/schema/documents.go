package schema

import "github.com/ZeMeny/Mars-Sensor/mrs"

// JSON Schema (draft-07) documents for each protocol message kind. These
// encode the protocol's structural rules: required identities, address
// formats on configuration requests, and the subscription category enum.
var schemaDocuments = map[mrs.MessageKind]string{
	mrs.KindDeviceConfiguration:    deviceConfigurationSchema,
	mrs.KindDeviceSubscription:     deviceSubscriptionSchema,
	mrs.KindCommandMessage:         commandMessageSchema,
	mrs.KindDeviceStatusReport:     deviceStatusReportSchema,
	mrs.KindDeviceIndicationReport: deviceIndicationReportSchema,
}

const deviceIdentificationSchema = `{
	"type": "object",
	"required": ["deviceName"],
	"properties": {
		"deviceName": {"type": "string", "minLength": 1},
		"deviceType": {"type": "string"}
	}
}`

const sensorIdentificationSchema = `{
	"type": "object",
	"required": ["sensorName"],
	"properties": {
		"sensorName": {"type": "string", "minLength": 1},
		"sensorType": {"type": "string"}
	}
}`

const locationSchema = `{
	"type": "object",
	"required": ["latitude", "longitude"],
	"properties": {
		"latitude": {"type": "number", "minimum": -90, "maximum": 90},
		"longitude": {"type": "number", "minimum": -180, "maximum": 180},
		"altitude": {
			"type": "object",
			"required": ["value"],
			"properties": {
				"value": {"type": "number"},
				"reference": {"enum": ["AGL", "MSL"]},
				"datum": {"type": "string"}
			}
		}
	}
}`

const deviceConfigurationSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["messageType", "deviceIdentification"],
	"properties": {
		"messageType": {"enum": ["Request", "Response", "Report"]},
		"requestorIdentification": {"type": "string"},
		"notificationServiceIP": {
			"type": "string",
			"pattern": "^(([0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])\\.){3}([0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])$"
		},
		"notificationServicePort": {"type": "string", "pattern": "^[0-9]{1,5}$"},
		"deviceIdentification": ` + deviceIdentificationSchema + `,
		"location": ` + locationSchema + `,
		"sensorConfigurations": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["sensorIdentification"],
				"properties": {
					"sensorIdentification": ` + sensorIdentificationSchema + `
				}
			}
		},
		"subDevices": {"type": "array"}
	}
}`

const deviceSubscriptionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["requestorIdentification"],
	"properties": {
		"requestorIdentification": {"type": "string", "minLength": 1},
		"subscriptionTypes": {
			"type": "array",
			"items": {"enum": ["TechnicalStatus", "OperationalIndication"]}
		}
	}
}`

const commandMessageSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["requestorIdentification"],
	"properties": {
		"requestorIdentification": {"type": "string", "minLength": 1}
	}
}`

const deviceStatusReportSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["deviceIdentification"],
	"properties": {
		"deviceIdentification": ` + deviceIdentificationSchema + `,
		"sensors": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["sensorIdentification"],
				"properties": {
					"sensorIdentification": ` + sensorIdentificationSchema + `,
					"communicationState": {"enum": ["OK", "Fault"]},
					"powerState": {"enum": ["Yes", "No"]},
					"technicalState": {"enum": ["OK", "Fault"]}
				}
			}
		},
		"subReports": {"type": "array"}
	}
}`

const deviceIndicationReportSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["deviceIdentification"],
	"properties": {
		"deviceIdentification": ` + deviceIdentificationSchema + `,
		"sensors": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["sensorIdentification", "detections"],
				"properties": {
					"sensorIdentification": ` + sensorIdentificationSchema + `,
					"detections": {
						"type": "array",
						"maxItems": 400,
						"items": {
							"type": "object",
							"required": ["trackId", "location"],
							"properties": {
								"trackId": {"type": "integer", "minimum": 0},
								"location": ` + locationSchema + `,
								"shape": {"enum": ["Aerial", "Ground", "Undefined"]},
								"bearingMils": {"type": "number", "minimum": 0, "maximum": 6400}
							}
						}
					}
				}
			}
		},
		"subReports": {"type": "array"}
	}
}`
