package cqldata

import "time"

// Now lambda to allow unit test to inject replayable time.Now.
var Now = time.Now
