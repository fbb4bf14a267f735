package camlink

import (
	"github.com/camlink/camlink/internal/logging"
)

var log = logging.DefaultLogger.WithTag("camlink")
