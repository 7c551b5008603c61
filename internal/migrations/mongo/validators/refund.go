package validators

import "go.mongodb.org/mongo-driver/bson"

var RefundValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"booking_id",
			"amount",
			"reason",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"gateway_refund_id": bson.M{
				"bsonType": "string",
			},

			"amount": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"currency": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 3,
			},

			"reason": bson.M{
				"bsonType": "string",
				"enum": []string{
					"USER_CANCELLATION",
					"CAPACITY_LOST",
					"RECONCILIATION",
				},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"REFUND_INITIATED",
					"REFUND_COMPLETED",
					"REFUND_FAILED",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
