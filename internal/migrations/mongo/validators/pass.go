package validators

import "go.mongodb.org/mongo-driver/bson"

var ZonePassValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"client_id",
			"zone_id",
			"kind",
			"remaining_visits",
			"created_at",
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

			"kind": bson.M{
				"bsonType": "string",
				"enum": []string{
					"visit_based",
					"time_based",
				},
			},

			"remaining_visits": bson.M{
				"bsonType": "int",
				"minimum":  0,
			},

			"end_date": bson.M{
				"bsonType": "date",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
