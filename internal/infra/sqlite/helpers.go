package sqlite

import "strings"

// isForeignKeyViolation reports whether err came from a FOREIGN KEY
// constraint failure. modernc.org/sqlite surfaces these as plain errors
// whose message contains the SQLite constraint name; matching on the
// message is how the dashboard's db_delete_err conflict-detection is
// grounded against the original web.rs behaviour.
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key") || strings.Contains(msg, "constraint failed")
}
