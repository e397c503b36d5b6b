// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charmstate

import (
	"fmt"
	"strings"
)

// connectStringSuffix is appended to the upper-cased interface name to
// form the connection URI environment variable, for example
// MYSQL_DB_CONNECT_STRING.
const connectStringSuffix = "_DB_CONNECT_STRING"

// databaseURIs resolves one connection URI per database interface from
// the relation databags. At most one relation per interface is
// supported; when several endpoints are offered the first is used.
// Relations with incomplete data (missing endpoints, username or
// password) are skipped with a warning rather than treated as errors:
// the data provider may simply not have converged yet.
func databaseURIs(relations map[string][]map[string]string, defaultDatabase string) map[string]string {
	uris := make(map[string]string)
	for interfaceName, databags := range relations {
		if len(databags) == 0 {
			continue
		}
		data := databags[0]
		if data["endpoints"] == "" || data["username"] == "" || data["password"] == "" {
			logger.Warningf("incomplete %s relation data from the data provider: %v", interfaceName, data)
			continue
		}
		database := data["database"]
		if database == "" {
			database = defaultDatabase
		}
		endpoint := strings.Split(data["endpoints"], ",")[0]
		uris[strings.ToUpper(interfaceName)+connectStringSuffix] = fmt.Sprintf(
			"%s://%s:%s@%s/%s",
			interfaceName, data["username"], data["password"], endpoint, database,
		)
	}
	return uris
}
