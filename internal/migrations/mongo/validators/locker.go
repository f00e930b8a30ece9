package validators

import "go.mongodb.org/mongo-driver/bson"

var LockerValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"number",
			"category",
			"status",
			"code",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"number": bson.M{
				"bsonType": "int",
				"minimum":  1,
			},

			"category": bson.M{
				"bsonType": "string",
				"enum": []string{
					"men",
					"women",
				},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"free",
					"occupied",
				},
			},

			"code": bson.M{
				"bsonType":  "string",
				"minLength": 4,
				"maxLength": 4,
			},

			"occupied_by": bson.M{
				"bsonType": "string",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
