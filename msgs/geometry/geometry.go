// Package geometry provides the standard geometric message types.
//
// Importing the package registers every type under the
// `zrm/msgs/geometry/...` identifiers.
package geometry

import (
	zrm "github.com/zrm-robotics/zrm-go"
)

type Point struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
	Z float64 `msgpack:"z"`
}

type Vector3 struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
	Z float64 `msgpack:"z"`
}

type Quaternion struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
	Z float64 `msgpack:"z"`
	W float64 `msgpack:"w"`
}

type Pose struct {
	Position    Point      `msgpack:"position"`
	Orientation Quaternion `msgpack:"orientation"`
}

type Pose2D struct {
	X     float64 `msgpack:"x"`
	Y     float64 `msgpack:"y"`
	Theta float64 `msgpack:"theta"`
}

type Twist struct {
	Linear  Vector3 `msgpack:"linear"`
	Angular Vector3 `msgpack:"angular"`
}

func init() {
	zrm.RegisterMessage("geometry", "Point", Point{})
	zrm.RegisterMessage("geometry", "Vector3", Vector3{})
	zrm.RegisterMessage("geometry", "Quaternion", Quaternion{})
	zrm.RegisterMessage("geometry", "Pose", Pose{})
	zrm.RegisterMessage("geometry", "Pose2D", Pose2D{})
	zrm.RegisterMessage("geometry", "Twist", Twist{})
}
