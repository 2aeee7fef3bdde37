// Package vault реализует машину состояний хранилища с блокировкой по времени.
//
// Хранилище принадлежит одному владельцу (authority) и держит токены одного
// выпуска на кастодиальном счете. Владелец пополняет хранилище, блокирует его
// до момента времени и выводит средства, только когда блокировка истекла.
//
// Состояния: Unlocked (начальное) и Locked. Переходы:
//
//	Unlocked --LockVault(t > now)--> Locked
//	Locked   --LockVault(t > now)--> Locked (новый срок)
//	Locked   --UnlockVault(now >= t)--> Unlocked
//	Unlocked --UnlockVault--> Unlocked (ничего не меняет)
//
// Каждая операция выполняется одной единицей работы хранилища записей: при
// любой ошибке ни одно изменение не применяется. Часы читаются один раз за
// операцию, сравнение срока включительное (now >= unlock).
package vault
