package main

import _ "time/tzdata" // delivery.time_zone must resolve on hosts without zoneinfo

func main() {
	Execute()
}
