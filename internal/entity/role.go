package entity

type Role string

const (
	// RoleUnset у управляющего клиента, который ещё не представился
	RoleUnset = Role("")
	// RoleDevice это устройство, которое принимает команды
	RoleDevice = Role("device")
	// RoleBrowser это браузер, который отправляет команды устройствам
	RoleBrowser = Role("browser")
)

func IsRoleValid(role Role) bool {
	return role == RoleDevice || role == RoleBrowser
}
