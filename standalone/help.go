package standalone

// HelpText is the response to the help command
const HelpText = `goto [x<n>] [y<n>] [z<n>]    move to absolute position
move [x<n>] [y<n>] [z<n>]    move by relative distance
speed min|max|acc x<n> ...   set speed parameters
step_per_mm x<n> ...         set steps per distance unit
add pos x<n> y<n> z<n> [ms]  add a watering position
del pos <i>                  delete position i
water duration [i] <ms>      set duration of position i, or all
repeat duration <ms>         set wait between sweeps
list pos                     list positions
pump on|off                  switch the pump
start                        start scheduled sweeps
stop                         stop sweeping, accept commands
home                         set current position as origin
status                       show controller state
help                         show this text`
