/*
Package orm provides an easy to use db wrapper

Break state space into prefixed sections called Buckets.
Each bucket contains only one type of model, stored under its primary key
and encoded with gogo/protobuf. Models are plain structs with protobuf
struct tags, so no code generation is required.
*/
package orm
