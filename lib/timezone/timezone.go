package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/Toronto")
	if err != nil {
		panic(err)
	}
}

// force the market timezone because check-in dates are calendar dates
// in the target market; a server landing in another zone would shift
// date arithmetic done through <time.Time>.Year()/Month()/Day()
func Now() time.Time {
	return time.Now().In(Location)
}
