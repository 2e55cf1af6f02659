package app

import (
	"log"
	"runtime/debug"

	tele "gopkg.in/telebot.v3"
)

// RecoverMiddleware не дает панике одного обработчика уронить поллер;
// в лог попадает пользователь и чат, на которых она случилась.
func RecoverMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			defer func() {
				if r := recover(); r != nil {
					var userID, chatID int64
					if c.Sender() != nil {
						userID = c.Sender().ID
					}
					if c.Chat() != nil {
						chatID = c.Chat().ID
					}
					log.Printf("💥 PANIC [handler, user=%d chat=%d]: %v\n%s", userID, chatID, r, string(debug.Stack()))
				}
			}()
			return next(c)
		}
	}
}
