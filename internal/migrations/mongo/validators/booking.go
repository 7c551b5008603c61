package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"event_id",
			"user_id",
			"status",
			"slot_count",
			"amount_total",
			"currency",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"event_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"user_id": bson.M{
				"bsonType": "string",
			},

			"purchaser_phone": bson.M{
				"bsonType": "string",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"INITIATED",
					"PAYMENT_PENDING",
					"CONFIRMED",
					"PAYMENT_FAILED",
					"PAYMENT_FAILED_VERIFIED",
					"PARTIALLY_CANCELLED",
					"CANCELLED",
					"EXPIRED",
				},
			},

			"slot_count": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  20,
			},

			"amount_total": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"amount_refunded": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"currency": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 3,
			},

			"refund_status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"NONE",
					"REFUND_INITIATED",
					"REFUND_COMPLETED",
					"REFUND_FAILED",
				},
			},

			"metadata": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"lock_key":           bson.M{"bsonType": "string"},
					"gateway_order_id":   bson.M{"bsonType": "string"},
					"gateway_payment_id": bson.M{"bsonType": "string"},
					"failure_reason":     bson.M{"bsonType": "string"},
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
