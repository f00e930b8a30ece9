package validators

import "go.mongodb.org/mongo-driver/bson"

var VisitValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"client_id",
			"visit_type",
			"check_in",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"client_id": bson.M{
				"bsonType": "string",
			},

			"trainer_id": bson.M{
				"bsonType": "string",
			},

			"session_id": bson.M{
				"bsonType": "string",
			},

			"zone_id": bson.M{
				"bsonType": "string",
			},

			"visit_type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"direct",
					"session",
				},
			},

			"check_in": bson.M{
				"bsonType": "date",
			},

			"check_out": bson.M{
				"bsonType": "date",
			},
		},
	},
}
