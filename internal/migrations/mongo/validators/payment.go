package validators

import "go.mongodb.org/mongo-driver/bson"

var ProcessedPaymentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"client_id",
			"zone_id",
			"visits",
			"processed_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"client_id": bson.M{
				"bsonType": "string",
			},

			"zone_id": bson.M{
				"bsonType": "string",
			},

			"visits": bson.M{
				"bsonType": "int",
				"minimum":  1,
			},

			"processed_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
